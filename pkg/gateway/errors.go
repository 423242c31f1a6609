package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	goerrors "github.com/goliatone/go-errors"

	"smsbridge/pkg/carrier"
	"smsbridge/pkg/channel/nexmo"
	"smsbridge/pkg/schema"
)

const (
	ErrorInvalidActivity = "SMS_INVALID_ACTIVITY"
	ErrorUnsupported     = "SMS_UNSUPPORTED"
	ErrorNotConnected    = "SMS_NOT_CONNECTED"
	ErrorCarrierFailed   = "SMS_CARRIER_FAILED"
	ErrorInternal        = "SMS_INTERNAL_ERROR"
)

type errorBody struct {
	Message  string `json:"message"`
	TextCode string `json:"text_code"`
	Category string `json:"category"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// sendError classifies an adapter send failure for the HTTP API.
func sendError(err error) *goerrors.Error {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich
	}

	switch {
	case errors.Is(err, schema.ErrInvalid):
		return newAPIError(err, goerrors.CategoryValidation, http.StatusBadRequest, ErrorInvalidActivity)
	case errors.Is(err, nexmo.ErrOnlyNote), errors.Is(err, nexmo.ErrNotSupported):
		return newAPIError(err, goerrors.CategoryOperation, http.StatusUnprocessableEntity, ErrorUnsupported)
	case errors.Is(err, nexmo.ErrNotConnected):
		return newAPIError(err, goerrors.CategoryOperation, http.StatusServiceUnavailable, ErrorNotConnected)
	case errors.Is(err, carrier.ErrRejected), errors.Is(err, carrier.ErrTransport):
		return newAPIError(err, goerrors.CategoryExternal, http.StatusBadGateway, ErrorCarrierFailed)
	default:
		return goerrors.New("An unexpected error occurred", goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError).
			WithTextCode(ErrorInternal)
	}
}

func badRequest(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorInvalidActivity)
}

func newAPIError(err error, category goerrors.Category, code int, textCode string) *goerrors.Error {
	return goerrors.New(err.Error(), category).
		WithCode(code).
		WithTextCode(textCode)
}

func (s *Service) writeError(w http.ResponseWriter, apiErr *goerrors.Error) {
	code := apiErr.Code
	if code == 0 {
		code = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	envelope := errorEnvelope{Error: errorBody{
		Message:  apiErr.Message,
		TextCode: apiErr.TextCode,
		Category: string(apiErr.Category),
	}}
	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		s.log.Error("Failed to write error response", "error", err)
	}
}
