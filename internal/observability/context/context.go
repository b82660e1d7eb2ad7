package context

import "context"

type requestIDKey struct{}
type actorIDKey struct{}
type paymentIDKey struct{}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

// WithActorID records the actor for log enrichment only. Orchestration calls
// receive the actor as an explicit argument.
func WithActorID(ctx context.Context, actorID string) context.Context {
	if actorID == "" {
		return ctx
	}
	return context.WithValue(ctx, actorIDKey{}, actorID)
}

func ActorIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(actorIDKey{}).(string)
	return value
}

func WithPaymentID(ctx context.Context, paymentID string) context.Context {
	if paymentID == "" {
		return ctx
	}
	return context.WithValue(ctx, paymentIDKey{}, paymentID)
}

func PaymentIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(paymentIDKey{}).(string)
	return value
}
