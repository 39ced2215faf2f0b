package apiclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pyresume/dashclient/internal/domain"
)

// envelope is the dashboard's response wrapper. Endpoints that do not use it
// return the payload bare.
type envelope struct {
	Success     *bool           `json:"success"`
	Data        json.RawMessage `json:"data"`
	Error       string          `json:"error"`
	Detail      string          `json:"detail"`
	Message     string          `json:"message"`
	Count       int             `json:"count"`
	TotalPages  int             `json:"total_pages"`
	CurrentPage int             `json:"current_page"`
}

func (e envelope) errorMessage() string {
	switch {
	case e.Error != "":
		return e.Error
	case e.Detail != "":
		return e.Detail
	default:
		return e.Message
	}
}

// statusClassifier turns an error status and the server's message into a
// domain error.
type statusClassifier func(statusCode int, msg string) error

// decodeResponse classifies resp with classify and decodes its payload into
// out.
func decodeResponse(resp *http.Response, out any, classify statusClassifier) error {
	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, domain.MaxErrorBodyBytes))
		var env envelope
		_ = json.Unmarshal(raw, &env)
		return classify(resp.StatusCode, env.errorMessage())
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	return decodePayload(raw, out)
}

// decodePayload unwraps the envelope when present and decodes the payload
// into out. A Page destination also receives the pagination fields.
func decodePayload(raw []byte, out any) error {
	if out == nil || len(raw) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Success == nil {
		if p, ok := out.(pager); ok {
			out = p.itemsTarget()
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	if !*env.Success {
		msg := env.errorMessage()
		if msg == "" {
			msg = "request reported failure"
		}
		return fmt.Errorf("%w: %s", domain.ErrServer, msg)
	}

	if p, ok := out.(pager); ok {
		p.setPagination(env.Count, env.TotalPages, env.CurrentPage)
		out = p.itemsTarget()
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}
