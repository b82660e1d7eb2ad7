package audit

import (
	"github.com/smallbiznis/acquiring/internal/audit/repository"
	"github.com/smallbiznis/acquiring/internal/audit/service"
	"go.uber.org/fx"
)

// Module provides the operation ledger used by the payment service.
var Module = fx.Module("audit",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
