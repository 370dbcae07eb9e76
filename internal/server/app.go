// Package server initializes and runs the auth server: it opens the database,
// runs migrations, wires services to the HTTP transport, and handles graceful
// shutdown on OS signals.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/cliptide/cliptide/internal/logging"
	"github.com/cliptide/cliptide/internal/server/config"
	"github.com/cliptide/cliptide/internal/server/httpapi"
	"github.com/cliptide/cliptide/internal/server/repositories/repomanager"
	"github.com/cliptide/cliptide/internal/server/services"
)

type App struct {
	config         *config.Config
	logger         logging.Logger
	db             *sql.DB
	sessionService *services.SessionService
	userService    *services.UserService
	mediaService   *services.MediaService
}

func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	ss, err := services.NewSessionService(db, rm, cfg)
	if err != nil {
		return nil, fmt.Errorf("session service init error: %w", err)
	}
	us := services.NewUserService(db, rm, cfg)
	ms := services.NewMediaService(cfg)

	return &App{
		config:         cfg,
		logger:         logger,
		db:             db,
		sessionService: ss,
		userService:    us,
		mediaService:   ms,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.EndpointAddr, app.logger,
		app.sessionService, app.userService, app.mediaService, app.config.SecureCookies)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, err.Error())
	}
}
