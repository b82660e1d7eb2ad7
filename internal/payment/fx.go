package payment

import (
	"github.com/smallbiznis/acquiring/internal/payment/repository"
	paymentservice "github.com/smallbiznis/acquiring/internal/payment/service"
	"go.uber.org/fx"
)

// Module provides the payment repository and orchestration service. It
// expects the audit and gateway modules in the same app.
var Module = fx.Module("payment",
	fx.Provide(
		repository.Provide,
		paymentservice.NewService,
	),
)
