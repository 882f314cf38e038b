package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/comigor/campbot/internal/commerce"
	"github.com/comigor/campbot/internal/payment"
)

// ErrInvalidInput marks tool input that violates the tool contract.
var ErrInvalidInput = errors.New("invalid input")

// Error codes carried in error payloads.
const (
	CodeUnknownTool          = "unknown_tool"
	CodeInvalidInput         = "invalid_input"
	CodeSoldOut              = "sold_out"
	CodeInsufficientCapacity = "insufficient_capacity"
	CodeNotFound             = "not_found"
	CodeUpstreamTimeout      = "upstream_timeout"
	CodeUpstreamError        = "upstream_error"
)

// ErrorPayload is the result body of a failed tool call.
type ErrorPayload struct {
	Success        bool   `json:"success"`
	Code           string `json:"error"`
	Message        string `json:"message"`
	SpotsRemaining *int   `json:"spots_remaining,omitempty"`
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// classify maps a gateway error onto an error payload the model can act on.
func classify(err error) ErrorPayload {
	p := ErrorPayload{Message: err.Error()}

	var capErr *commerce.CapacityError
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, payment.ErrInvalidInput):
		p.Code = CodeInvalidInput
	case errors.As(err, &capErr):
		p.Code = CodeInsufficientCapacity
		if errors.Is(err, commerce.ErrSoldOut) {
			p.Code = CodeSoldOut
		}
		remaining := capErr.Remaining
		p.SpotsRemaining = &remaining
	case errors.Is(err, commerce.ErrNotFound):
		p.Code = CodeNotFound
		p.Message = "Introuvable. Vérifiez le numéro et réessayez."
	case errors.Is(err, commerce.ErrUpstreamTimeout), errors.Is(err, payment.ErrUpstreamTimeout),
		errors.Is(err, context.DeadlineExceeded):
		p.Code = CodeUpstreamTimeout
		p.Message = "Le service ne répond pas pour le moment. Réessayez dans quelques instants."
	default:
		p.Code = CodeUpstreamError
		p.Message = "Le service est temporairement indisponible."
	}
	return p
}

func (p ErrorPayload) marshal() json.RawMessage {
	b, err := json.Marshal(p)
	if err != nil {
		return json.RawMessage(`{"success":false,"error":"upstream_error"}`)
	}
	return b
}
