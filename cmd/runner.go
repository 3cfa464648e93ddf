package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/isaac-jh/ym-library/internal/models"
	"github.com/isaac-jh/ym-library/internal/repositories"
	"github.com/isaac-jh/ym-library/internal/services"
	"github.com/isaac-jh/ym-library/internal/shared"
	"github.com/isaac-jh/ym-library/internal/tasks"
	"github.com/isaac-jh/ym-library/internal/tracker"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	client     *services.Client
	logger     *log.Logger
	output     io.Writer
	tty        bool
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Client     *services.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Client == nil {
		opts.Client = services.NewClientFromConfig(opts.Config.API, opts.Logger)
	}

	tty := false
	if f, ok := opts.Output.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		client:     opts.Client,
		logger:     opts.Logger,
		output:     opts.Output,
		tty:        tty,
	}
}

// SetLogger replaces the logger, used by the TUI to keep log lines off the screen.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, usersCommand, backupCommand, catalogCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// workspace is the local state a tracker command works against.
type workspace struct {
	db        *sql.DB
	lock      *shared.StateLock
	session   *models.Session
	client    *services.Client
	sessions  *repositories.SessionRepository
	snapshots *repositories.SnapshotRepository
	board     *tasks.Board
}

func (w *workspace) Close() error {
	var errs []error
	if w.db != nil {
		errs = append(errs, w.db.Close())
	}
	errs = append(errs, w.lock.Release())
	return errors.Join(errs...)
}

// openState opens the local state database. Writers take the state lock first.
func (r *Runner) openState(write bool) (*workspace, error) {
	w := &workspace{}
	if write {
		lock, err := shared.LockState(r.config.Database.Path)
		if err != nil {
			return nil, err
		}
		w.lock = lock
	}

	db, err := shared.OpenMigrated(r.config.Database)
	if err != nil {
		w.lock.Release()
		return nil, err
	}
	w.db = db
	w.sessions = repositories.NewSessionRepository(db)
	w.snapshots = repositories.NewSnapshotRepository(db)

	session, err := w.sessions.Load()
	switch {
	case err == nil:
		w.session = &session
		w.client = r.client.WithSession(&session)
	case errors.Is(err, shared.ErrNotAuthenticated):
		w.client = r.client
	default:
		w.Close()
		return nil, err
	}
	return w, nil
}

// openBoard opens the local state and a board over it.
//
// Records come from the snapshot cache when one exists so pending changes survive between invocations; refresh, or
// an empty cache, loads them from the server instead, which drops pending changes.
func (r *Runner) openBoard(ctx context.Context, write, refresh bool) (*workspace, error) {
	w, err := r.openState(write)
	if err != nil {
		return nil, err
	}

	t, err := tracker.NewWithStore(repositories.NewChangeSetRepository(w.db))
	if err != nil {
		w.Close()
		return nil, err
	}

	w.board = tasks.NewBoard(w.client,
		tasks.WithTracker(t),
		tasks.WithSnapshots(w.snapshots),
		tasks.WithDirectory(w.client),
		tasks.WithBoardLogger(r.logger),
	)

	if !refresh {
		records, syncedAt, err := w.snapshots.All()
		if err != nil {
			w.Close()
			return nil, err
		}
		if len(records) > 0 {
			r.logger.Debug("using cached records", "count", len(records), "synced_at", syncedAt)
			w.board.Seed(records)
			return w, nil
		}
	}

	if w.lock == nil {
		// Loading rewrites the snapshot cache and the pending changes.
		lock, err := shared.LockState(r.config.Database.Path)
		if err != nil {
			w.Close()
			return nil, err
		}
		w.lock = lock
	}

	if n := len(t.PendingRecords()); n > 0 && refresh {
		r.logger.Warn("reloading drops pending changes", "records", n)
	}
	if err := w.board.Load(ctx, nil); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// writeTable writes the table form on a terminal and the plain form otherwise, or either when forced.
func (r *Runner) writeTable(table, plain string, forcePlain bool) error {
	if forcePlain || !r.tty {
		return r.writePlain("%s", plain)
	}
	return r.writePlain("%s\n", table)
}
