package apperr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Upstream classifies a failure returned by the OpenAI client. API errors keep
// the server's message, code and type; transport failures become KindNetwork.
func Upstream(kind Kind, err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &Error{Kind: kind, Msg: describeAPIError(apiErr), Err: err}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &Error{Kind: kind, Msg: describeRequestError(reqErr), Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindNetwork, Msg: err.Error(), Err: err}
	}

	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindNetwork, Msg: err.Error(), Err: err}
}

func describeAPIError(e *openai.APIError) string {
	msg := e.Message
	if msg == "" {
		msg = "Unknown error"
	}
	if e.Code != nil {
		if code := fmt.Sprint(e.Code); code != "" {
			msg = fmt.Sprintf("%s (%s)", msg, code)
		}
	}
	if e.Type != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Type)
	}
	return msg
}

func describeRequestError(e *openai.RequestError) string {
	status := e.HTTPStatus
	if status == "" {
		status = fmt.Sprint(e.HTTPStatusCode)
	}
	body := strings.TrimSpace(string(e.Body))
	if body == "" {
		return "HTTP " + status
	}
	return fmt.Sprintf("HTTP %s: %s", status, body)
}
