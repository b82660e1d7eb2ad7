package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"
	auditdomain "github.com/smallbiznis/acquiring/internal/audit/domain"
	"github.com/smallbiznis/acquiring/internal/config"
	"github.com/smallbiznis/acquiring/internal/gateway"
	"github.com/smallbiznis/acquiring/internal/observability"
	obsmetrics "github.com/smallbiznis/acquiring/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/acquiring/internal/payment/domain"
	"github.com/smallbiznis/acquiring/internal/ratelimit"
	"github.com/smallbiznis/acquiring/pkg/db/pagination"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type fakePayments struct {
	paymentdomain.Service

	payment *paymentdomain.Payment
	err     error

	lastAmount int64
	lastActor  *string
	lastID     snowflake.ID
	lastToken  string
	lastParams map[string]any
	passID     *snowflake.ID
	passReply  *gateway.Response
}

func (f *fakePayments) Register(ctx context.Context, actorID *string, amount int64, params map[string]any) (*paymentdomain.Payment, error) {
	f.lastActor, f.lastAmount, f.lastParams = actorID, amount, params
	return f.payment, f.err
}

func (f *fakePayments) Deposit(ctx context.Context, actorID *string, paymentID snowflake.ID, amount int64, params map[string]any) (*paymentdomain.Payment, error) {
	f.lastActor, f.lastID, f.lastAmount = actorID, paymentID, amount
	return f.payment, f.err
}

func (f *fakePayments) Reverse(ctx context.Context, actorID *string, paymentID snowflake.ID, params map[string]any) (*paymentdomain.Payment, error) {
	f.lastActor, f.lastID, f.lastParams = actorID, paymentID, params
	return f.payment, f.err
}

func (f *fakePayments) PayWithApplePay(ctx context.Context, actorID *string, token string, params map[string]any) (*paymentdomain.Payment, error) {
	f.lastActor, f.lastToken = actorID, token
	return f.payment, f.err
}

func (f *fakePayments) Get(ctx context.Context, paymentID snowflake.ID) (*paymentdomain.Payment, error) {
	f.lastID = paymentID
	return f.payment, f.err
}

func (f *fakePayments) GetBindings(ctx context.Context, actorID *string, paymentID *snowflake.ID, params map[string]any) (*gateway.Response, error) {
	f.passID, f.lastParams = paymentID, params
	return f.passReply, f.err
}

type fakeAudit struct {
	auditdomain.Service

	req auditdomain.ListOperationsRequest
}

func (f *fakeAudit) ListByPayment(ctx context.Context, req auditdomain.ListOperationsRequest) (auditdomain.ListOperationsResponse, error) {
	f.req = req
	return auditdomain.ListOperationsResponse{
		PageInfo:   pagination.PageInfo{HasMore: false},
		Operations: []auditdomain.OperationEntry{{ID: snowflake.ID(9), PaymentID: req.PaymentID, Type: auditdomain.OperationRegister}},
	}, nil
}

func newTestServer(t *testing.T, cfg config.Config, payments *fakePayments) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := NewEngine(observability.Config{}, obsmetrics.NewHTTPMetrics(prometheus.NewRegistry()))
	srv, err := NewServer(Params{
		Engine:     engine,
		Cfg:        cfg,
		Log:        zap.NewNop(),
		PaymentSvc: payments,
		AuditSvc:   &fakeAudit{},
	})
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body == "" {
		reader = &bytes.Buffer{}
	} else {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

type errorBody struct {
	Error errorPayload `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func samplePayment() *paymentdomain.Payment {
	order := "order-1"
	return &paymentdomain.Payment{
		ID:          snowflake.ID(42),
		BankOrderID: &order,
		System:      paymentdomain.SystemGatewayDirect,
		Status:      paymentdomain.StatusRegistered,
		CreatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestNewServerRequiresKeyInProduction(t *testing.T) {
	_, err := NewServer(Params{
		Engine: gin.New(),
		Cfg:    config.Config{Environment: "production"},
		Log:    zap.NewNop(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func TestAPIKeyRequired(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-key"), bcrypt.MinCost)
	require.NoError(t, err)

	payments := &fakePayments{payment: samplePayment()}
	srv := newTestServer(t, config.Config{APIKeyHash: string(hash)}, payments)

	rec := do(t, srv, http.MethodGet, "/v1/payments/42", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, srv, http.MethodGet, "/v1/payments/42", "", map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, srv, http.MethodGet, "/v1/payments/42", "", map[string]string{"Authorization": "Bearer secret-key"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, snowflake.ID(42), payments.lastID)
}

func TestHealthzIsPublic(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-key"), bcrypt.MinCost)
	require.NoError(t, err)
	srv := newTestServer(t, config.Config{APIKeyHash: string(hash)}, &fakePayments{})

	rec := do(t, srv, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRegisterConvertsAmountAndThreadsActor(t *testing.T) {
	payments := &fakePayments{payment: samplePayment()}
	srv := newTestServer(t, config.Config{}, payments)

	rec := do(t, srv, http.MethodPost, "/v1/payments/register",
		`{"amount":"10.50","params":{"orderNumber":"A-1"}}`,
		map[string]string{headerActorID: "user-7"})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, int64(1050), payments.lastAmount)
	require.NotNil(t, payments.lastActor)
	assert.Equal(t, "user-7", *payments.lastActor)
	assert.Equal(t, "A-1", payments.lastParams["orderNumber"])

	var body struct {
		Data paymentdomain.Payment `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, snowflake.ID(42), body.Data.ID)
	assert.Equal(t, paymentdomain.StatusRegistered, body.Data.Status)
}

func TestRegisterRejectsFractionalMinorUnits(t *testing.T) {
	payments := &fakePayments{payment: samplePayment()}
	srv := newTestServer(t, config.Config{}, payments)

	rec := do(t, srv, http.MethodPost, "/v1/payments/register", `{"amount":10.505}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "amount", payload.Errors[0].Field)
	assert.Zero(t, payments.lastAmount)
}

func TestInvalidAmountFromServiceMapsToBadRequest(t *testing.T) {
	payments := &fakePayments{err: paymentdomain.ErrInvalidAmount}
	srv := newTestServer(t, config.Config{}, payments)

	rec := do(t, srv, http.MethodPost, "/v1/payments/register", `{"amount":0}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "amount", decodeError(t, rec).Errors[0].Field)
}

func TestUnknownPaymentMapsToNotFound(t *testing.T) {
	payments := &fakePayments{err: paymentdomain.ErrNotFound}
	srv := newTestServer(t, config.Config{}, payments)

	rec := do(t, srv, http.MethodPost, "/v1/payments/77/deposit", `{"amount":"5"}`, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, snowflake.ID(77), payments.lastID)
	assert.Equal(t, int64(500), payments.lastAmount)
	assert.Empty(t, decodeError(t, rec).PaymentID)
}

func TestInvalidPaymentIDIsValidationError(t *testing.T) {
	srv := newTestServer(t, config.Config{}, &fakePayments{})

	rec := do(t, srv, http.MethodGet, "/v1/payments/abc", "", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "id", decodeError(t, rec).Errors[0].Field)
}

func TestGatewayRejectionCarriesPaymentID(t *testing.T) {
	failed := samplePayment()
	failed.Status = paymentdomain.StatusError
	payments := &fakePayments{
		payment: failed,
		err: &paymentdomain.GatewayBusinessError{
			Operation: "reverse",
			Code:      "7",
			Message:   "Reversal is not possible",
		},
	}
	srv := newTestServer(t, config.Config{}, payments)

	rec := do(t, srv, http.MethodPost, "/v1/payments/42/reverse", "", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "gateway_rejected", payload.Type)
	assert.Equal(t, "7", payload.Code)
	assert.Equal(t, "Reversal is not possible", payload.Message)
	assert.Equal(t, "42", payload.PaymentID)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{"reconciliation", &paymentdomain.ReconciliationError{PaymentID: 1, FailedWrites: []string{paymentdomain.WriteAudit}}, http.StatusInternalServerError, "reconciliation_error"},
		{"unrecognized status", &paymentdomain.UnrecognizedStatusError{Code: "99"}, http.StatusBadGateway, "unrecognized_status"},
		{"breaker open", gobreaker.ErrOpenState, http.StatusServiceUnavailable, "gateway_unavailable"},
		{"transport", &gateway.TransportError{Operation: gateway.OpReverse, Err: errors.New("connection refused")}, http.StatusBadGateway, "gateway_unavailable"},
		{"parse", &gateway.ParseError{Operation: gateway.OpReverse, RawBody: "<html>", Err: errors.New("bad json")}, http.StatusBadGateway, "gateway_malformed_reply"},
		{"configuration", &config.ConfigurationError{Setting: "ACQUIRING_RETURN_URL"}, http.StatusInternalServerError, "configuration_error"},
		{"duplicate order", fmt.Errorf("%w: abc", paymentdomain.ErrDuplicateOrderID), http.StatusConflict, "conflict"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.typ, payload.Type)
		})
	}
}

func TestApplePayPassesToken(t *testing.T) {
	payments := &fakePayments{payment: samplePayment()}
	srv := newTestServer(t, config.Config{}, payments)

	rec := do(t, srv, http.MethodPost, "/v1/payments/apple-pay", `{"payment_token":"tok-1"}`, nil)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "tok-1", payments.lastToken)
	assert.Nil(t, payments.lastActor)
}

func TestListOperationsForwardsPaging(t *testing.T) {
	audit := &fakeAudit{}
	gin.SetMode(gin.TestMode)
	srv, err := NewServer(Params{
		Engine:     NewEngine(observability.Config{}, obsmetrics.NewHTTPMetrics(prometheus.NewRegistry())),
		Cfg:        config.Config{},
		Log:        zap.NewNop(),
		PaymentSvc: &fakePayments{},
		AuditSvc:   audit,
	})
	require.NoError(t, err)

	rec := do(t, srv, http.MethodGet, "/v1/payments/42/operations?page_size=5&page_token=abc", "", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, snowflake.ID(42), audit.req.PaymentID)
	assert.Equal(t, 5, audit.req.PageSize)
	assert.Equal(t, "abc", audit.req.PageToken)
}

func TestPassThroughReturnsGatewayReply(t *testing.T) {
	payments := &fakePayments{
		passReply: gateway.NewResponse(gateway.OpGetBindings, http.StatusOK,
			[]byte(`{"errorCode":"2","errorMessage":"Binding not found"}`)),
	}
	srv := newTestServer(t, config.Config{}, payments)

	rec := do(t, srv, http.MethodPost, "/v1/gateway/bindings",
		`{"payment_id":"42","params":{"clientId":"c-1"}}`, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, payments.passID)
	assert.Equal(t, snowflake.ID(42), *payments.passID)
	assert.Equal(t, "c-1", payments.lastParams["clientId"])

	var body struct {
		Successful bool           `json:"successful"`
		Data       map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Successful)
	assert.Equal(t, "Binding not found", body.Data["errorMessage"])
}

func TestPassThroughUnknownOperation(t *testing.T) {
	srv := newTestServer(t, config.Config{}, &fakePayments{})

	rec := do(t, srv, http.MethodPost, "/v1/gateway/transfer", `{}`, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimitRejectsBurstOverflow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	gin.SetMode(gin.TestMode)
	srv, err := NewServer(Params{
		Engine:     NewEngine(observability.Config{}, obsmetrics.NewHTTPMetrics(prometheus.NewRegistry())),
		Cfg:        config.Config{},
		Log:        zap.NewNop(),
		PaymentSvc: &fakePayments{payment: samplePayment()},
		AuditSvc:   &fakeAudit{},
		Limiter:    ratelimit.NewAPILimiter(ratelimit.NewTokenBucket(client, "test:"), 0.01, 1),
	})
	require.NoError(t, err)

	rec := do(t, srv, http.MethodGet, "/v1/payments/42", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/v1/payments/42", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", decodeError(t, rec).Type)

	rec = do(t, srv, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
