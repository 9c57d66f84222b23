package di

import (
	"context"
	"fmt"

	"github.com/park285/dong-server/internal/config"
	"github.com/park285/dong-server/internal/grpcserver"
	"github.com/park285/dong-server/internal/guard"
	"github.com/park285/dong-server/internal/handler"
	"github.com/park285/dong-server/internal/health"
	"github.com/park285/dong-server/internal/ledger"
	"github.com/park285/dong-server/internal/logging"
	"github.com/park285/dong-server/internal/metrics"
	"github.com/park285/dong-server/internal/prompt"
	"github.com/park285/dong-server/internal/resultcache"
	"github.com/park285/dong-server/internal/server"
	"github.com/park285/dong-server/internal/telemetry"
)

// InitializeApp 은 애플리케이션 의존성을 초기화하고 App 인스턴스를 반환한다.
func InitializeApp(ctx context.Context) (app *App, err error) {
	cfg, err := config.ProvideConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	app = &App{Logger: logger, Config: cfg}
	defer func() {
		if err != nil {
			app.Close(context.WithoutCancel(ctx))
		}
	}()

	app.Telemetry, err = telemetry.NewProvider(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	metricsStore := metrics.NewStore()

	loc := cfg.Ledger.Location()
	app.Ledger = ledger.NewRepository(cfg, logging.Component(logger, "ledger"))
	usageLedger := ledger.New(app.Ledger, cfg.Ledger.DailyLimit, logging.Component(logger, "ledger"), ledger.WithLocation(loc))
	app.Purger = ledger.NewPurger(app.Ledger, cfg.Ledger.RetentionDays, cfg.Ledger.PurgeInterval, loc, logging.Component(logger, "ledger_purger"))

	app.ResultCache, err = resultcache.New(cfg.ResultCache, logging.Component(logger, "result_cache"))
	if err != nil {
		return nil, fmt.Errorf("result cache: %w", err)
	}

	injectionGuard, err := guard.NewGuard(cfg, logging.Component(logger, "guard"))
	if err != nil {
		return nil, fmt.Errorf("guard: %w", err)
	}

	builder, err := prompt.NewDefaultBuilder(cfg.Prompt.Currency)
	if err != nil {
		return nil, fmt.Errorf("prompt builder: %w", err)
	}

	provider, err := ProvideProvider(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	gateway, err := ProvideGateway(cfg, provider, app.ResultCache, metricsStore, logger)
	if err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}

	var cachePinger health.Pinger
	if app.ResultCache != nil {
		cachePinger = app.ResultCache
	}
	checker := health.NewChecker(cfg, app.Ledger, cachePinger)

	calculateHandler := handler.NewCalculateHandler(cfg, usageLedger, builder, gateway, injectionGuard, metricsStore, logging.Component(logger, "calculate"))
	usageHandler := handler.NewUsageHandler(usageLedger, logging.Component(logger, "usage"))

	router, err := handler.NewRouter(cfg, logger, calculateHandler, usageHandler, checker, metricsStore, app.Telemetry.Middleware())
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}
	app.Server = server.NewHTTPServer(cfg, router)

	app.GRPCServer, app.GRPCListener, err = grpcserver.NewServer(cfg, checker, logging.Component(logger, "grpc"))
	if err != nil {
		return nil, fmt.Errorf("grpc server: %w", err)
	}

	return app, nil
}
