package gateway

import "context"

// Params is the parameter bag sent with one gateway call.
type Params map[string]any

// Merge returns a new bag holding p overlaid with extra. Keys in p win.
func (p Params) Merge(extra map[string]any) Params {
	out := make(Params, len(p)+len(extra))
	for k, v := range extra {
		out[k] = v
	}
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Caller issues a single named operation.
type Caller interface {
	Call(ctx context.Context, op Operation, params Params) (*Response, error)
}

// Client exposes one method per gateway operation. A non-nil error is
// always a *TransportError; business rejections come back as a Response.
type Client interface {
	Caller

	Register(ctx context.Context, params Params) (*Response, error)
	RegisterPreAuth(ctx context.Context, params Params) (*Response, error)
	Deposit(ctx context.Context, params Params) (*Response, error)
	Reverse(ctx context.Context, params Params) (*Response, error)
	Refund(ctx context.Context, params Params) (*Response, error)
	GetOrderStatusExtended(ctx context.Context, params Params) (*Response, error)
	PayWithApplePay(ctx context.Context, params Params) (*Response, error)
	PayWithSamsungPay(ctx context.Context, params Params) (*Response, error)
	PayWithGooglePay(ctx context.Context, params Params) (*Response, error)
	GetReceiptStatus(ctx context.Context, params Params) (*Response, error)
	BindCard(ctx context.Context, params Params) (*Response, error)
	UnbindCard(ctx context.Context, params Params) (*Response, error)
	GetBindings(ctx context.Context, params Params) (*Response, error)
	GetBindingsByCardOrID(ctx context.Context, params Params) (*Response, error)
	ExtendBinding(ctx context.Context, params Params) (*Response, error)
	VerifyEnrollment(ctx context.Context, params Params) (*Response, error)
}

type client struct {
	Caller
}

// NewClient exposes a Caller through the per-operation Client methods.
func NewClient(caller Caller) Client {
	return &client{Caller: caller}
}

func (c *client) Register(ctx context.Context, params Params) (*Response, error) {
	return c.Call(ctx, OpRegister, params)
}

func (c *client) RegisterPreAuth(ctx context.Context, params Params) (*Response, error) {
	return c.Call(ctx, OpRegisterPreAuth, params)
}

func (c *client) Deposit(ctx context.Context, params Params) (*Response, error) {
	return c.Call(ctx, OpDeposit, params)
}

func (c *client) Reverse(ctx context.Context, params Params) (*Response, error) {
	return c.Call(ctx, OpReverse, params)
}

func (c *client) Refund(ctx context.Context, params Params) (*Response, error) {
	return c.Call(ctx, OpRefund, params)
}

func (c *client) GetOrderStatusExtended(ctx context.Context, params Params) (*Response, error) {
	return c.Call(ctx, OpGetOrderStatusExtended, params)
}

func (c *client) PayWithApplePay(ctx context.Context, params Params) (*Response, error) {
	return c.Call(ctx, OpApplePay, params)
}

func (c *client) PayWithSamsungPay(ctx context.Context, params Params) (*Response, error) {
	return c.Call(ctx, OpSamsungPay, params)
}

func (c *client) PayWithGooglePay(ctx context.Context, params Params) (*Response, error) {
	return c.Call(ctx, OpGooglePay, params)
}

func (c *client) GetReceiptStatus(ctx context.Context, params Params) (*Response, error) {
	return c.Call(ctx, OpGetReceiptStatus, params)
}

func (c *client) BindCard(ctx context.Context, params Params) (*Response, error) {
	return c.Call(ctx, OpBindCard, params)
}

func (c *client) UnbindCard(ctx context.Context, params Params) (*Response, error) {
	return c.Call(ctx, OpUnbindCard, params)
}

func (c *client) GetBindings(ctx context.Context, params Params) (*Response, error) {
	return c.Call(ctx, OpGetBindings, params)
}

func (c *client) GetBindingsByCardOrID(ctx context.Context, params Params) (*Response, error) {
	return c.Call(ctx, OpGetBindingsByCardOrID, params)
}

func (c *client) ExtendBinding(ctx context.Context, params Params) (*Response, error) {
	return c.Call(ctx, OpExtendBinding, params)
}

func (c *client) VerifyEnrollment(ctx context.Context, params Params) (*Response, error) {
	return c.Call(ctx, OpVerifyEnrollment, params)
}
