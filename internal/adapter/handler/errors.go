package handler

import (
	"errors"
	"net/http"

	"github.com/rl1809/ticket-booking/internal/core/domain"
)

const (
	codeInvalidInput      = "INVALID_INPUT"
	codeUnknownTier       = "UNKNOWN_TIER"
	codeInsufficientStock = "INSUFFICIENT_STOCK"
	codeDuplicateRequest  = "DUPLICATE_REQUEST"
	codePaymentDeclined   = "PAYMENT_DECLINED"
	codeInfrastructure    = "INFRASTRUCTURE_FAILURE"
)

type errorDescription struct {
	status  int
	code    string
	message string
}

// describeError maps booking error kinds to a status and a caller-safe
// message. Infrastructure faults only ever expose the generic message.
func describeError(err error) errorDescription {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return errorDescription{http.StatusBadRequest, codeInvalidInput, err.Error()}
	case errors.Is(err, domain.ErrUnknownTier):
		return errorDescription{http.StatusBadRequest, codeUnknownTier, err.Error()}
	case errors.Is(err, domain.ErrInsufficientStock):
		return errorDescription{http.StatusConflict, codeInsufficientStock, err.Error()}
	case errors.Is(err, domain.ErrDuplicateRequest):
		return errorDescription{http.StatusConflict, codeDuplicateRequest, "duplicate request"}
	case errors.Is(err, domain.ErrPaymentDeclined):
		return errorDescription{http.StatusBadGateway, codePaymentDeclined, "payment declined"}
	default:
		return errorDescription{http.StatusServiceUnavailable, codeInfrastructure, domain.ErrInfrastructure.Error()}
	}
}
