package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/park285/dong-server/internal/config"
	"github.com/park285/dong-server/internal/di"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := di.InitializeApp(ctx)
	if err != nil {
		log.Printf("initialize app: %v", err)
		return 1
	}
	config.LogEnvStatus(app.Config, app.Logger)
	app.Purger.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serveHTTP(gctx, app) })
	if app.GRPCServer != nil {
		g.Go(func() error { return serveGRPC(gctx, app) })
	}
	err = g.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	app.Close(closeCtx)

	if err != nil {
		app.Logger.Error("server_failed", "err", err)
		return 1
	}
	app.Logger.Info("server_stopped")
	return 0
}

// serveHTTP 는 ctx 가 끝나면 진행 중인 요청을 기다렸다가 서버를 내린다.
func serveHTTP(ctx context.Context, app *di.App) error {
	app.Logger.Info("http_server_start", "addr", app.Server.Addr, "http2", app.Config.HTTP.HTTP2Enabled)

	errCh := make(chan error, 1)
	go func() { errCh <- app.Server.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	app.Logger.Info("http_server_shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.Server.Shutdown(shutdownCtx); err != nil {
		_ = app.Server.Close()
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func serveGRPC(ctx context.Context, app *di.App) error {
	app.Logger.Info("grpc_server_start", "addr", app.GRPCListener.Addr().String())
	go func() {
		<-ctx.Done()
		app.GRPCServer.GracefulStop()
	}()
	if err := app.GRPCServer.Serve(app.GRPCListener); err != nil {
		return fmt.Errorf("grpc server: %w", err)
	}
	return nil
}
