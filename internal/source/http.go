package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

const maxBodyBytes = 10 << 20

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.StatusCode)
}

// Temporary reports whether the remote side may recover by the next run.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func getJSON(ctx context.Context, opts Options, url string, headers map[string]string, out any) error {
	body, err := get(ctx, opts, url, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// rawItems keeps page items undecoded so Normalize can reject a badly typed
// posting without losing the rest of the page.
func rawItems(msgs []json.RawMessage) []any {
	items := make([]any, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, m)
	}
	return items
}

// decodeItem decodes one page item produced by rawItems.
func decodeItem[T any](raw any) (T, bool) {
	var out T
	msg, ok := raw.(json.RawMessage)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(msg, &out); err != nil {
		return out, false
	}
	return out, true
}

func get(ctx context.Context, opts Options, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", opts.UserAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := opts.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return readAllLimit(resp.Body, maxBodyBytes)
}

func readAllLimit(r io.Reader, max int64) ([]byte, error) {
	lr := &io.LimitedReader{R: r, N: max + 1}
	b, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > max {
		return nil, fmt.Errorf("response too large")
	}
	return b, nil
}

// flexString decodes JSON strings, numbers and null into a string. Several
// sources change the type of ids and salary fields between records.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == "" {
		*f = ""
		return nil
	}
	if s[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(v))
		return nil
	}
	if s == "true" || s == "false" {
		*f = flexString(s)
		return nil
	}
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return fmt.Errorf("flexString: unsupported value %s", s)
	}
	*f = flexString(s)
	return nil
}

func (f flexString) String() string { return string(f) }

// flexStrings accepts either a single string or an array of strings.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == "" {
		*f = nil
		return nil
	}
	if s[0] == '[' {
		var v []string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = v
		return nil
	}
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if strings.TrimSpace(v) == "" {
		*f = nil
		return nil
	}
	*f = []string{v}
	return nil
}
