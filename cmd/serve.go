package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/isaac-jh/ym-library/internal/server"
	"github.com/isaac-jh/ym-library/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the development backend until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}
	dbPath := cmd.String("db")
	if dbPath == "" {
		dbPath = r.config.Server.DatabasePath
	}

	lock, err := shared.LockState(dbPath)
	if err != nil {
		return err
	}
	defer lock.Release()

	db, err := shared.OpenMigrated(shared.DatabaseConfig{Path: dbPath, MaxOpenConns: 1, MaxIdleConns: 1})
	if err != nil {
		return err
	}
	defer db.Close()

	backend := server.NewBackend(db, shared.WithLogger(r.logger, "component", "server"))
	if err := r.seedUsers(backend, cmd.StringSlice("user")); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.writePlain("Serving http://%s%s (database %s)\n", addr, server.APIPrefix, dbPath)
	return backend.ListenAndServe(ctx, addr)
}

// seedUsers creates the users given as name:nickname:password, skipping nicknames already taken.
func (r *Runner) seedUsers(backend *server.Backend, specs []string) error {
	if len(specs) == 0 {
		return nil
	}

	existing, err := backend.Users().List()
	if err != nil {
		return err
	}
	taken := make(map[string]bool, len(existing))
	for _, u := range existing {
		taken[u.Nickname] = true
	}

	for _, spec := range specs {
		parts := strings.SplitN(spec, ":", 3)
		if len(parts) != 3 {
			return fmt.Errorf("%w: user %q must be name:nickname:password", shared.ErrInvalidArgument, spec)
		}
		name, nickname, password := parts[0], parts[1], parts[2]
		if taken[nickname] {
			r.logger.Debug("user exists, skipping", "nickname", nickname)
			continue
		}

		u, err := backend.Users().Create(name, nickname, password)
		if err != nil {
			return err
		}
		taken[nickname] = true
		r.logger.Info("seeded user", "id", u.ID, "nickname", u.Nickname)
	}
	return nil
}
