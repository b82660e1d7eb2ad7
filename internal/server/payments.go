package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/acquiring/internal/audit/domain"
	"github.com/smallbiznis/acquiring/internal/gateway"
	paymentdomain "github.com/smallbiznis/acquiring/internal/payment/domain"
	"github.com/smallbiznis/acquiring/pkg/db/pagination"
)

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Params map[string]any  `json:"params"`
}

type paramsRequest struct {
	Params map[string]any `json:"params"`
}

type walletRequest struct {
	PaymentToken string           `json:"payment_token"`
	Amount       *decimal.Decimal `json:"amount"`
	Params       map[string]any   `json:"params"`
}

type passThroughRequest struct {
	PaymentID string         `json:"payment_id"`
	Params    map[string]any `json:"params"`
}

func (s *Server) Register(c *gin.Context) {
	s.register(c, s.paymentSvc.Register)
}

func (s *Server) RegisterPreAuth(c *gin.Context) {
	s.register(c, s.paymentSvc.RegisterPreAuth)
}

func (s *Server) register(c *gin.Context, op func(context.Context, *string, int64, map[string]any) (*paymentdomain.Payment, error)) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	amount, err := minorUnits(req.Amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	payment, err := op(c.Request.Context(), actorID(c), amount, req.Params)
	if err != nil {
		abortWithPayment(c, payment, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": payment})
}

func (s *Server) Deposit(c *gin.Context) {
	s.withAmount(c, s.paymentSvc.Deposit)
}

func (s *Server) Refund(c *gin.Context) {
	s.withAmount(c, s.paymentSvc.Refund)
}

func (s *Server) withAmount(c *gin.Context, op func(context.Context, *string, snowflake.ID, int64, map[string]any) (*paymentdomain.Payment, error)) {
	id, err := paymentIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	amount, err := minorUnits(req.Amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	payment, err := op(c.Request.Context(), actorID(c), id, amount, req.Params)
	if err != nil {
		abortWithPayment(c, payment, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": payment})
}

func (s *Server) Reverse(c *gin.Context) {
	s.withParams(c, s.paymentSvc.Reverse)
}

func (s *Server) QueryStatus(c *gin.Context) {
	s.withParams(c, s.paymentSvc.QueryStatus)
}

func (s *Server) withParams(c *gin.Context, op func(context.Context, *string, snowflake.ID, map[string]any) (*paymentdomain.Payment, error)) {
	id, err := paymentIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req paramsRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}

	payment, err := op(c.Request.Context(), actorID(c), id, req.Params)
	if err != nil {
		abortWithPayment(c, payment, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": payment})
}

func (s *Server) PayWithApplePay(c *gin.Context) {
	s.payWithWallet(c, s.paymentSvc.PayWithApplePay)
}

func (s *Server) PayWithSamsungPay(c *gin.Context) {
	s.payWithWallet(c, s.paymentSvc.PayWithSamsungPay)
}

func (s *Server) payWithWallet(c *gin.Context, op func(context.Context, *string, string, map[string]any) (*paymentdomain.Payment, error)) {
	var req walletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	payment, err := op(c.Request.Context(), actorID(c), req.PaymentToken, req.Params)
	if err != nil {
		abortWithPayment(c, payment, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": payment})
}

func (s *Server) PayWithGooglePay(c *gin.Context) {
	var req walletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if req.Amount == nil {
		AbortWithError(c, newValidationError("amount", "invalid_amount", "amount is required"))
		return
	}
	amount, err := minorUnits(*req.Amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	payment, err := s.paymentSvc.PayWithGooglePay(c.Request.Context(), actorID(c), req.PaymentToken, amount, req.Params)
	if err != nil {
		abortWithPayment(c, payment, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": payment})
}

func (s *Server) GetPayment(c *gin.Context) {
	id, err := paymentIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	payment, err := s.paymentSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": payment})
}

func (s *Server) ListOperations(c *gin.Context) {
	id, err := paymentIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	pageSize, err := parsePageSize(c.Query("page_size"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.auditSvc.ListByPayment(c.Request.Context(), auditdomain.ListOperationsRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(c.Query("page_token")),
			PageSize:  pageSize,
		},
		PaymentID: id,
		Type:      strings.TrimSpace(c.Query("type")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":      resp.Operations,
		"page_info": resp.PageInfo,
	})
}

type passThroughFunc func(context.Context, *string, *snowflake.ID, map[string]any) (*gateway.Response, error)

func (s *Server) passThroughOperations() map[string]passThroughFunc {
	return map[string]passThroughFunc{
		"receipt-status":    s.paymentSvc.GetReceiptStatus,
		"bind-card":         s.paymentSvc.BindCard,
		"unbind-card":       s.paymentSvc.UnbindCard,
		"bindings":          s.paymentSvc.GetBindings,
		"bindings-by-card":  s.paymentSvc.GetBindingsByCardOrID,
		"extend-binding":    s.paymentSvc.ExtendBinding,
		"verify-enrollment": s.paymentSvc.VerifyEnrollment,
	}
}

// PassThrough forwards auxiliary gateway calls. The gateway reply is
// returned as-is, successful or not.
func (s *Server) PassThrough(c *gin.Context) {
	op, ok := s.passThroughOperations()[c.Param("operation")]
	if !ok {
		AbortWithError(c, ErrNotFound)
		return
	}
	var req passThroughRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	paymentID, err := parseOptionalSnowflakeID(req.PaymentID)
	if err != nil {
		AbortWithError(c, newValidationError("payment_id", "invalid_id", "invalid payment id"))
		return
	}

	resp, err := op(c.Request.Context(), actorID(c), paymentID, req.Params)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	data, err := resp.Data()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"successful": resp.IsSuccessful(),
		"data":       data,
	})
}
