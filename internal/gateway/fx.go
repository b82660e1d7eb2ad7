package gateway

import (
	"github.com/smallbiznis/acquiring/internal/config"
	obsmetrics "github.com/smallbiznis/acquiring/internal/observability/metrics"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ClientParams struct {
	fx.In

	Cfg        config.Config
	Log        *zap.Logger
	Tracer     trace.TracerProvider `optional:"true"`
	ObsMetrics *obsmetrics.Metrics  `optional:"true"`
}

func New(p ClientParams) Client {
	return NewClient(NewHTTPClient(p.Cfg.Gateway, p.Log,
		WithTracerProvider(p.Tracer),
		WithMetrics(p.ObsMetrics),
	))
}

var Module = fx.Module("gateway",
	fx.Provide(New),
	fx.Invoke(checkConfig),
)

// checkConfig stops a production process that could never reach the bank.
// Elsewhere a missing setting only surfaces when an operation needs it.
func checkConfig(cfg config.Config, log *zap.Logger) error {
	err := cfg.Validate()
	if err == nil {
		return nil
	}
	if cfg.IsProduction() {
		return err
	}
	log.Warn("gateway configuration incomplete", zap.Error(err))
	return nil
}
