package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/acquiring/internal/audit/domain"
	"github.com/smallbiznis/acquiring/internal/config"
	"github.com/smallbiznis/acquiring/internal/gateway"
	obsmetrics "github.com/smallbiznis/acquiring/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/acquiring/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Cfg          config.Config
	Repo         paymentdomain.Repository
	AuditSvc     auditdomain.Service
	Gateway      gateway.Client
	ConfigHolder *config.AcquiringConfigHolder `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics            `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	gatewayCfg   config.GatewayConfig
	repo         paymentdomain.Repository
	auditSvc     auditdomain.Service
	gateway      gateway.Client
	configHolder *config.AcquiringConfigHolder
	obsMetrics   *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("payment.service"),
		genID:        p.GenID,
		gatewayCfg:   p.Cfg.Gateway,
		repo:         p.Repo,
		auditSvc:     p.AuditSvc,
		gateway:      p.Gateway,
		configHolder: p.ConfigHolder,
		obsMetrics:   p.ObsMetrics,
	}
}

func (s *Service) Register(ctx context.Context, actorID *string, amount int64, params map[string]any) (*paymentdomain.Payment, error) {
	return s.register(ctx, actorID, auditdomain.OperationRegister, gateway.OpRegister, amount, params)
}

func (s *Service) RegisterPreAuth(ctx context.Context, actorID *string, amount int64, params map[string]any) (*paymentdomain.Payment, error) {
	return s.register(ctx, actorID, auditdomain.OperationRegisterPreAuth, gateway.OpRegisterPreAuth, amount, params)
}

func (s *Service) register(ctx context.Context, actorID *string, opType auditdomain.OperationType, op gateway.Operation, amount int64, params map[string]any) (*paymentdomain.Payment, error) {
	if err := s.requireCredentials(); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}

	request := cloneParams(params)
	if err := s.resolveURLs(request); err != nil {
		return nil, err
	}
	request["amount"] = amount

	payment, entry, err := s.open(ctx, actorID, paymentdomain.SystemGatewayDirect, opType, request)
	if err != nil {
		return nil, err
	}

	err = s.dispatch(ctx, entry, call{
		payment: payment,
		opType:  opType,
		op:      op,
		request: request,
		auth:    s.gatewayCfg.AuthParams(),
		onSuccess: func(resp *gateway.Response) (writes, error) {
			orderID, ok := resp.String("orderId")
			if !ok || orderID == "" {
				return writes{}, missingField(op, resp, "orderId")
			}
			w := writes{payment: map[string]any{
				paymentdomain.ColumnBankOrderID: orderID,
				paymentdomain.ColumnStatus:      paymentdomain.StatusRegistered,
			}}
			if formURL, ok := resp.String("formUrl"); ok && formURL != "" {
				w.details = map[string]any{paymentdomain.ColumnBankFormURL: formURL}
			}
			return w, nil
		},
	})
	return payment, err
}

// Deposit captures a held amount. A successful capture leaves the status
// as-is; the next status query reports what the bank did with it.
func (s *Service) Deposit(ctx context.Context, actorID *string, paymentID snowflake.ID, amount int64, params map[string]any) (*paymentdomain.Payment, error) {
	if amount < 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}
	return s.orderOperation(ctx, actorID, paymentID, auditdomain.OperationDeposit, gateway.OpDeposit, params,
		map[string]any{"amount": amount}, keepStatus)
}

func (s *Service) Reverse(ctx context.Context, actorID *string, paymentID snowflake.ID, params map[string]any) (*paymentdomain.Payment, error) {
	return s.orderOperation(ctx, actorID, paymentID, auditdomain.OperationReverse, gateway.OpReverse, params, nil,
		func(*gateway.Response) (writes, error) {
			return statusWrite(paymentdomain.StatusReversed), nil
		})
}

// Refund returns money to the payer. Like Deposit, success does not change
// the local status.
func (s *Service) Refund(ctx context.Context, actorID *string, paymentID snowflake.ID, amount int64, params map[string]any) (*paymentdomain.Payment, error) {
	if amount <= 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}
	return s.orderOperation(ctx, actorID, paymentID, auditdomain.OperationRefund, gateway.OpRefund, params,
		map[string]any{"amount": amount}, keepStatus)
}

// QueryStatus asks the bank for the order status and maps it through the
// status catalog. An unknown code fails closed and leaves the status untouched.
func (s *Service) QueryStatus(ctx context.Context, actorID *string, paymentID snowflake.ID, params map[string]any) (*paymentdomain.Payment, error) {
	catalog := s.statusCatalog()
	return s.orderOperation(ctx, actorID, paymentID, auditdomain.OperationGetExtendedStatus, gateway.OpGetOrderStatusExtended, params, nil,
		func(resp *gateway.Response) (writes, error) {
			code, ok := resp.Int("orderStatus")
			if !ok {
				raw, _ := resp.String("orderStatus")
				return writes{}, &paymentdomain.UnrecognizedStatusError{Code: raw, RawBody: resp.RawBody()}
			}
			status, ok := catalog.Lookup(code)
			if !ok {
				return writes{}, &paymentdomain.UnrecognizedStatusError{Code: fmt.Sprint(code), RawBody: resp.RawBody()}
			}
			return statusWrite(status), nil
		})
}

// orderOperation runs a call against an already registered order.
func (s *Service) orderOperation(
	ctx context.Context,
	actorID *string,
	paymentID snowflake.ID,
	opType auditdomain.OperationType,
	op gateway.Operation,
	params map[string]any,
	fixed map[string]any,
	onSuccess func(*gateway.Response) (writes, error),
) (*paymentdomain.Payment, error) {
	if err := s.requireCredentials(); err != nil {
		return nil, err
	}
	payment, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	// The stored order id and the validated values win over caller params.
	request := cloneParams(params)
	delete(request, "orderId")
	if payment.BankOrderID != nil {
		request["orderId"] = *payment.BankOrderID
	}
	for k, v := range fixed {
		request[k] = v
	}

	err = s.execute(ctx, actorID, call{
		payment:   payment,
		opType:    opType,
		op:        op,
		request:   request,
		auth:      s.gatewayCfg.AuthParams(),
		onSuccess: onSuccess,
	})
	return payment, err
}

func (s *Service) PayWithApplePay(ctx context.Context, actorID *string, paymentToken string, params map[string]any) (*paymentdomain.Payment, error) {
	return s.payWithWallet(ctx, actorID, paymentdomain.SystemApplePay, paymentToken, params)
}

func (s *Service) PayWithSamsungPay(ctx context.Context, actorID *string, paymentToken string, params map[string]any) (*paymentdomain.Payment, error) {
	return s.payWithWallet(ctx, actorID, paymentdomain.SystemSamsungPay, paymentToken, params)
}

func (s *Service) PayWithGooglePay(ctx context.Context, actorID *string, paymentToken string, amount int64, params map[string]any) (*paymentdomain.Payment, error) {
	if amount <= 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}
	request := cloneParams(params)
	if err := s.resolveURLs(request); err != nil {
		return nil, err
	}
	request["amount"] = amount
	return s.payWithWallet(ctx, actorID, paymentdomain.SystemGooglePay, paymentToken, request)
}

var walletOperations = map[paymentdomain.System]struct {
	opType auditdomain.OperationType
	op     gateway.Operation
}{
	paymentdomain.SystemApplePay:   {auditdomain.OperationApplePayPayment, gateway.OpApplePay},
	paymentdomain.SystemSamsungPay: {auditdomain.OperationSamsungPayPayment, gateway.OpSamsungPay},
	paymentdomain.SystemGooglePay:  {auditdomain.OperationGooglePayPayment, gateway.OpGooglePay},
}

// payWithWallet creates the payment before calling the wallet endpoint.
// Success only records the bank order id.
func (s *Service) payWithWallet(ctx context.Context, actorID *string, system paymentdomain.System, paymentToken string, params map[string]any) (*paymentdomain.Payment, error) {
	ops, ok := walletOperations[system]
	if !ok {
		return nil, paymentdomain.ErrInvalidSystem
	}
	merchant := strings.TrimSpace(s.gatewayCfg.MerchantLogin)
	if merchant == "" {
		return nil, &config.ConfigurationError{Setting: "ACQUIRING_MERCHANT_LOGIN"}
	}
	paymentToken = strings.TrimSpace(paymentToken)
	if paymentToken == "" {
		return nil, paymentdomain.ErrInvalidToken
	}

	request := cloneParams(params)
	request["paymentToken"] = paymentToken

	payment, entry, err := s.open(ctx, actorID, system, ops.opType, request)
	if err != nil {
		return nil, err
	}

	err = s.dispatch(ctx, entry, call{
		payment: payment,
		opType:  ops.opType,
		op:      ops.op,
		request: request,
		auth:    map[string]any{"merchant": merchant},
		onSuccess: func(resp *gateway.Response) (writes, error) {
			orderID, ok := resp.String("data.orderId")
			if !ok || orderID == "" {
				return writes{}, missingField(ops.op, resp, "data.orderId")
			}
			return writes{payment: map[string]any{paymentdomain.ColumnBankOrderID: orderID}}, nil
		},
	})
	return payment, err
}

func (s *Service) Get(ctx context.Context, paymentID snowflake.ID) (*paymentdomain.Payment, error) {
	return s.repo.FindByID(ctx, paymentID)
}

// open stores a NEW payment, its details and the audit entry for the first
// call in one transaction, committed before the gateway is contacted.
// Wallet requests without an orderNumber get the payment id as order number.
func (s *Service) open(ctx context.Context, actorID *string, system paymentdomain.System, opType auditdomain.OperationType, request map[string]any) (*paymentdomain.Payment, *auditdomain.OperationEntry, error) {
	id := s.genID.Generate()
	if system != paymentdomain.SystemGatewayDirect {
		if v, ok := request["orderNumber"]; !ok || v == nil || v == "" {
			request["orderNumber"] = id.String()
		}
	}

	details, err := paymentdomain.NewDetails(system, request)
	if err != nil {
		return nil, nil, err
	}
	if holder, ok := details.(paymentdomain.TokenHolder); ok {
		if token, _ := request["paymentToken"].(string); token != "" {
			holder.SetPaymentToken(token)
		}
	}

	payment := &paymentdomain.Payment{
		ID:      id,
		System:  system,
		Status:  paymentdomain.StatusNew,
		Details: details,
	}

	var entry *auditdomain.OperationEntry
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, payment); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		begun, err := s.auditSvc.WithTx(tx).Begin(ctx, payment.ID, actorID, opType, request)
		if err != nil {
			return fmt.Errorf("record %s attempt: %w", opType, err)
		}
		entry = begun
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return payment, entry, nil
}

func (s *Service) requireCredentials() error {
	if !s.gatewayCfg.HasCredentials() {
		return &config.ConfigurationError{Setting: "ACQUIRING_USERNAME/ACQUIRING_PASSWORD or ACQUIRING_TOKEN"}
	}
	return nil
}

// resolveURLs fills returnUrl and failUrl from configuration when the
// caller did not pass them. A missing return URL is a configuration error.
func (s *Service) resolveURLs(request map[string]any) error {
	if stringParam(request, "returnUrl") == "" {
		if s.gatewayCfg.ReturnURL == "" {
			return &config.ConfigurationError{Setting: "ACQUIRING_RETURN_URL"}
		}
		request["returnUrl"] = s.gatewayCfg.ReturnURL
	}
	if stringParam(request, "failUrl") == "" && s.gatewayCfg.FailURL != "" {
		request["failUrl"] = s.gatewayCfg.FailURL
	}
	return nil
}

func (s *Service) statusCatalog() paymentdomain.StatusCatalog {
	if s.configHolder == nil {
		return paymentdomain.DefaultStatusCatalog()
	}
	catalog, err := paymentdomain.NewStatusCatalog(s.configHolder.Get().StatusOverrides())
	if err != nil {
		s.log.Warn("ignoring status catalog overrides", zap.Error(err))
	}
	return catalog
}

func keepStatus(*gateway.Response) (writes, error) {
	return writes{}, nil
}

func statusWrite(status paymentdomain.Status) writes {
	return writes{payment: map[string]any{paymentdomain.ColumnStatus: status}}
}

func missingField(op gateway.Operation, resp *gateway.Response, field string) error {
	return &gateway.ParseError{
		Operation: op,
		RawBody:   resp.RawBody(),
		Err:       errors.New(field + " missing from successful reply"),
	}
}

func cloneParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params)+4)
	for k, v := range params {
		out[k] = v
	}
	return out
}

func stringParam(params map[string]any, key string) string {
	value, _ := params[key].(string)
	return strings.TrimSpace(value)
}
