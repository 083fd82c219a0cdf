package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/dmitrijs2005/myhealthdata/internal/client/cloud"
	"github.com/dmitrijs2005/myhealthdata/internal/client/config"
	"github.com/dmitrijs2005/myhealthdata/internal/client/diag"
	"github.com/dmitrijs2005/myhealthdata/internal/client/fetcher"
	"github.com/dmitrijs2005/myhealthdata/internal/client/services"
	"github.com/dmitrijs2005/myhealthdata/internal/client/sharing"
	"github.com/dmitrijs2005/myhealthdata/internal/client/store"
	"github.com/dmitrijs2005/myhealthdata/internal/client/suppression"
	"github.com/dmitrijs2005/myhealthdata/internal/client/syncer"
	"github.com/dmitrijs2005/myhealthdata/internal/filex"
	"github.com/dmitrijs2005/myhealthdata/internal/logging"
	"golang.org/x/term"
)

// Deps are the outside-world pieces an App runs against.
type Deps struct {
	Store    *store.Store
	Remote   cloud.Remote
	Account  services.AccountClient
	Uploader diag.UploadURLRequester
	HTTP     *http.Client
	Logger   logging.Logger
	Closers  []func() error
}

// App holds everything one command invocation needs.
type App struct {
	cfg    *config.Config
	logger logging.Logger

	store      *store.Store
	remote     cloud.Remote
	uploader   diag.UploadURLRequester
	httpClient *http.Client

	account    services.AccountService
	records    *services.RecordService
	syncer     *syncer.Engine
	fetcher    *fetcher.Engine
	sharing    *sharing.Manager
	debug      *diag.Store
	suppressed *suppression.Set

	closers []func() error

	out io.Writer
	in  *bufio.Reader
}

// Factory builds the App once configuration is resolved.
type Factory func(ctx context.Context, cfg *config.Config) (*App, error)

// NewApp wires services around deps.
func NewApp(cfg *config.Config, deps Deps) *App {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Nop{}
	}
	sync := syncer.New(deps.Store, deps.Remote, cfg.Zone, logger)
	debug := diag.New(cfg.DiagLog)

	return &App{
		cfg:        cfg,
		logger:     logger,
		store:      deps.Store,
		remote:     deps.Remote,
		uploader:   deps.Uploader,
		httpClient: deps.HTTP,
		account:    services.NewAccountService(deps.Account, deps.Store),
		records:    services.NewRecordService(deps.Store, deps.Remote, sync, logger),
		syncer:     sync,
		fetcher:    fetcher.New(deps.Store, deps.Remote, cfg.Zone, logger),
		sharing:    sharing.New(deps.Store, deps.Remote, sync, debug, logger),
		debug:      debug,
		suppressed: suppression.New(deps.Store),
		closers:    append(deps.Closers, deps.Store.Close),
		out:        os.Stdout,
		in:         bufio.NewReader(os.Stdin),
	}
}

// DefaultFactory opens the SQLite store at cfg.Database and connects to the
// gRPC backend at cfg.Server. A stored session token is restored.
func DefaultFactory(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := NewLogger(cfg, os.Stderr)

	if err := filex.EnsureParentDir(cfg.Database); err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	remote, err := cloud.NewGRPCRemote(cfg.Server)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("connect %s: %w", cfg.Server, err)
	}

	app := NewApp(cfg, Deps{
		Store:    st,
		Remote:   remote,
		Account:  remote,
		Uploader: remote,
		HTTP:     &http.Client{Timeout: cfg.RequestTimeout},
		Logger:   logger,
		Closers:  []func() error{remote.Close},
	})

	if _, err := app.account.RestoreSession(ctx); err != nil && !errors.Is(err, services.ErrNotLoggedIn) {
		logger.Warn(ctx, "session restore failed", "error", err)
	}
	return app, nil
}

// NewLogger builds the client logger. The console format falls back to
// JSON lines when w is not a terminal.
func NewLogger(cfg *config.Config, w io.Writer) logging.Logger {
	format := logging.Format(cfg.LogFormat)
	if format == logging.FormatConsole {
		if f, ok := w.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
			format = logging.FormatJSON
		}
	}
	return logging.New(format, cfg.LogLevel, w)
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// savedLocally reports whether a mutation reached the local store. A push
// failure after the save still counts.
func savedLocally(err error) bool {
	return err == nil || errors.Is(err, services.ErrPushFailed)
}
