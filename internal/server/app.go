// Package server wires the cloud backend together: PostgreSQL storage,
// the gRPC document service and the public HTTP surface.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/myhealthdata/internal/logging"
	"github.com/dmitrijs2005/myhealthdata/internal/server/config"
	gs "github.com/dmitrijs2005/myhealthdata/internal/server/grpc"
	"github.com/dmitrijs2005/myhealthdata/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/myhealthdata/internal/server/services"
	"github.com/dmitrijs2005/myhealthdata/internal/server/web"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"
)

// runner is a long-lived component that stops when its context is done.
type runner interface {
	Run(ctx context.Context) error
}

type App struct {
	config  *config.Config
	logger  logging.Logger
	runners []runner
	closers []io.Closer
}

type poolCloser struct{ pool *pgxpool.Pool }

func (p poolCloser) Close() error {
	p.pool.Close()
	return nil
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewSlogJSONLogger(os.Stdout, c.LogLevel)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, c.DatabaseDSN)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("pool init error: %w", err)
	}

	us := services.NewUserService(db, rm, c)
	ds := services.NewDocumentService(db, rm, c)
	ss := services.NewShareService(db, rm, ds, c)
	sup := services.NewSupportService(c)

	grpcServer := gs.NewGRPCServer(c.EndpointAddrGRPC, logger, us, ds, ss, sup, c.SecretKey)
	httpServer := web.NewServer(c.EndpointAddrHTTP, web.NewPoolStore(pool), c.ShareURL, logger)

	logger.Info(ctx, "App initialized", "environment", string(c.Environment))

	return &App{
		config:  c,
		logger:  logger,
		runners: []runner{grpcServer, httpServer},
		closers: []io.Closer{poolCloser{pool}, db},
	}, nil
}

// Run starts every component and blocks until a signal arrives, ctx is done
// or one component fails. The others are stopped in turn.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	g, ctx := errgroup.WithContext(ctx)
	for _, r := range app.runners {
		r := r
		g.Go(func() error { return r.Run(ctx) })
	}
	err := g.Wait()

	for _, c := range app.closers {
		if cerr := c.Close(); cerr != nil {
			app.logger.Warn(context.Background(), "close failed", "error", cerr)
		}
	}

	if err != nil {
		app.logger.Error(context.Background(), "App stopped with error", "error", err)
		return err
	}
	app.logger.Info(context.Background(), "App stopped")
	return nil
}
