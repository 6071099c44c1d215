package handler

import (
	"errors"
	"strings"

	"job-sync/internal/delivery/http/middleware"
	"job-sync/internal/pkg/response"
	"job-sync/internal/usecase"

	"github.com/gofiber/fiber/v3"
)

func mapUsecaseError(err error) error {
	return mapUsecaseErrorWithData(err, nil)
}

// mapUsecaseErrorWithData translates usecase sentinels into HTTP errors.
// Client errors carry the validation detail as their message.
func mapUsecaseErrorWithData(err error, data any) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, usecase.ErrInvalidInput):
		return middleware.NewAppError(fiber.StatusBadRequest, clientMessage(err, response.MessageBadRequest), data, err)
	case errors.Is(err, usecase.ErrNotFound):
		return middleware.NewAppError(fiber.StatusNotFound, clientMessage(err, response.MessageNotFound), data, err)
	default:
		return middleware.NewAppError(fiber.StatusInternalServerError, response.MessageInternalServerError, nil, err)
	}
}

func clientMessage(err error, fallback string) string {
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return fallback
	}
	return msg
}
