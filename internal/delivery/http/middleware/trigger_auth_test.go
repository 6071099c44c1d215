package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"job-sync/internal/pkg/jwt"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthApp(secret string, svc jwt.Service, scope string) *fiber.App {
	app := fiber.New()
	app.Use(NewErrorMiddleware(nil).Middleware())
	mw := NewTriggerAuthMiddleware(secret, svc)
	app.Get("/guarded", mw.Require(scope), func(c fiber.Ctx) error {
		sub, _ := c.Locals(CtxTriggerSubject).(string)
		return c.SendString(sub)
	})
	return app
}

func statusFor(t *testing.T, app *fiber.App, header, value string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestTriggerAuth_Secret(t *testing.T) {
	app := newAuthApp("s3cret", nil, jwt.ScopeSync)

	assert.Equal(t, http.StatusOK, statusFor(t, app, "Authorization", "Bearer s3cret"))
	assert.Equal(t, http.StatusOK, statusFor(t, app, HeaderTriggerSecret, "s3cret"))
	assert.Equal(t, http.StatusUnauthorized, statusFor(t, app, HeaderTriggerSecret, "wrong"))
	assert.Equal(t, http.StatusUnauthorized, statusFor(t, app, "", ""))
}

func TestTriggerAuth_NotConfigured(t *testing.T) {
	app := newAuthApp("", nil, jwt.ScopeSync)
	assert.Equal(t, http.StatusUnauthorized, statusFor(t, app, "Authorization", "Bearer anything"))
}

func TestTriggerAuth_ScopedToken(t *testing.T) {
	svc := jwt.NewHMACService("s3cret", time.Minute)
	syncTok, err := svc.GenerateTriggerToken("scheduler", jwt.ScopeSync)
	require.NoError(t, err)
	adminTok, err := svc.GenerateTriggerToken("ops", jwt.ScopeAdmin)
	require.NoError(t, err)

	admin := newAuthApp("s3cret", svc, jwt.ScopeAdmin)
	assert.Equal(t, http.StatusOK, statusFor(t, admin, "Authorization", "Bearer "+adminTok))
	assert.Equal(t, http.StatusForbidden, statusFor(t, admin, "Authorization", "Bearer "+syncTok))

	other, err := jwt.NewHMACService("different", time.Minute).GenerateTriggerToken("x", jwt.ScopeAdmin)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, statusFor(t, admin, "Authorization", "Bearer "+other))
}
