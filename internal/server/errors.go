package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/acquiring/internal/audit/domain"
	"github.com/smallbiznis/acquiring/internal/gateway"
	paymentdomain "github.com/smallbiznis/acquiring/internal/payment/domain"
	"github.com/sony/gobreaker/v2"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type      string            `json:"type"`
	Message   string            `json:"message"`
	Code      string            `json:"code,omitempty"`
	PaymentID string            `json:"payment_id,omitempty"`
	Errors    []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

const contextPaymentIDKey = "payment_id"

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		if paymentID := c.GetString(contextPaymentIDKey); paymentID != "" {
			payload.PaymentID = paymentID
		}
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

// abortWithPayment reports err and, when the payment was already stored,
// its id so the caller can follow up on it.
func abortWithPayment(c *gin.Context, payment *paymentdomain.Payment, err error) {
	if payment != nil {
		c.Set(contextPaymentIDKey, payment.ID.String())
	}
	AbortWithError(c, err)
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if field, ok := validationField(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{{
				Field:   field,
				Code:    err.Error(),
				Message: "invalid value",
			}},
		}
	}

	var rejected *paymentdomain.GatewayBusinessError
	var unknown *paymentdomain.UnrecognizedStatusError

	switch {
	case errors.Is(err, paymentdomain.ErrReconciliation):
		return http.StatusInternalServerError, errorPayload{
			Type:    "reconciliation_error",
			Message: "gateway outcome could not be fully recorded",
		}
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrNotFound),
		errors.Is(err, paymentdomain.ErrNotFound),
		errors.Is(err, auditdomain.ErrEntryNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, paymentdomain.ErrDuplicateOrderID):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "bank order id already belongs to another payment",
		}
	case errors.As(err, &rejected):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "gateway_rejected",
			Message: rejected.Message,
			Code:    rejected.Code,
		}
	case errors.As(err, &unknown):
		return http.StatusBadGateway, errorPayload{
			Type:    "unrecognized_status",
			Message: unknown.Error(),
			Code:    unknown.Code,
		}
	case errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "gateway_unavailable",
			Message: "gateway temporarily unavailable",
		}
	case errors.Is(err, gateway.ErrTransport):
		return http.StatusBadGateway, errorPayload{
			Type:    "gateway_unavailable",
			Message: "gateway did not respond",
		}
	case errors.Is(err, gateway.ErrParse):
		return http.StatusBadGateway, errorPayload{
			Type:    "gateway_malformed_reply",
			Message: "gateway reply could not be parsed",
		}
	case errors.Is(err, paymentdomain.ErrConfiguration):
		return http.StatusInternalServerError, errorPayload{
			Type:    "configuration_error",
			Message: err.Error(),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func validationField(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "request", true
	case errors.Is(err, paymentdomain.ErrInvalidAmount):
		return "amount", true
	case errors.Is(err, paymentdomain.ErrInvalidToken):
		return "payment_token", true
	case errors.Is(err, paymentdomain.ErrInvalidStatus):
		return "status", true
	case errors.Is(err, auditdomain.ErrInvalidPageToken):
		return "page_token", true
	case errors.Is(err, auditdomain.ErrInvalidOperationType):
		return "type", true
	default:
		return "", false
	}
}

// classifyErrorForLog returns the error type and code logged with a request.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	return payload.Type, payload.Code
}
