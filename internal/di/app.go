package di

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"google.golang.org/grpc"

	"github.com/park285/dong-server/internal/config"
	"github.com/park285/dong-server/internal/ledger"
	"github.com/park285/dong-server/internal/resultcache"
	"github.com/park285/dong-server/internal/telemetry"
)

// App: 애플리케이션 구성 요소를 묶는다.
type App struct {
	Server       *http.Server
	GRPCServer   *grpc.Server
	GRPCListener net.Listener
	Logger       *slog.Logger
	Config       *config.Config
	Ledger       *ledger.Repository
	Purger       *ledger.Purger
	ResultCache  *resultcache.Store
	Telemetry    *telemetry.Provider
}

// Close: 앱 리소스를 정리합니다. 생성의 역순으로 닫는다.
func (a *App) Close(ctx context.Context) {
	if a.GRPCServer != nil {
		a.GRPCServer.GracefulStop()
	}
	if a.GRPCListener != nil {
		_ = a.GRPCListener.Close()
	}
	if a.Purger != nil {
		a.Purger.Stop()
	}
	if a.ResultCache != nil {
		a.ResultCache.Close()
	}
	if a.Ledger != nil {
		a.Ledger.Close()
	}
	if a.Telemetry != nil {
		if err := a.Telemetry.Shutdown(ctx); err != nil && a.Logger != nil {
			a.Logger.Warn("telemetry_shutdown_failed", "err", err)
		}
	}
}
