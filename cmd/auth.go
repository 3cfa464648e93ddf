package main

import (
	"context"
	"fmt"

	"github.com/isaac-jh/ym-library/internal/formatter"
	"github.com/isaac-jh/ym-library/internal/services"
	"github.com/isaac-jh/ym-library/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin logs in with nickname and password and stores the session locally.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	nickname := cmd.String("nickname")

	r.logger.Info("logging in", "nickname", nickname)

	session, err := r.client.Login(ctx, nickname, cmd.String("password"))
	if err != nil {
		return err
	}

	w, err := r.openState(true)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.sessions.Save(session); err != nil {
		return err
	}

	r.logger.Info("authentication successful", "user", session.User.ID)
	return r.writePlain("✓ Logged in as %s (#%d)\n", session.User.Label(), session.User.ID)
}

// AuthLogout forgets the stored session. Pending changes are kept.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	w, err := r.openState(true)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.sessions.Clear(); err != nil {
		return err
	}
	return r.writePlain("✓ Logged out\n")
}

// AuthWhoami prints the logged-in user.
func (r *Runner) AuthWhoami(ctx context.Context, cmd *cli.Command) error {
	w, err := r.openState(false)
	if err != nil {
		return err
	}
	defer w.Close()

	if w.session == nil {
		return shared.ErrNotAuthenticated
	}

	u := w.session.User
	r.writePlain("User: %s (#%d)\n", u.Name, u.ID)
	if u.Nickname != "" {
		r.writePlain("Nickname: %s\n", u.Nickname)
	}
	if w.session.AccessToken != "" {
		r.writePlain("Token: %s\n", w.session.TokenType)
	}
	if !w.session.CreatedAt.IsZero() {
		r.writePlain("Since: %s\n", w.session.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

// UsersList prints the user directory.
func (r *Runner) UsersList(ctx context.Context, cmd *cli.Command) error {
	w, err := r.openState(false)
	if err != nil {
		return err
	}
	defer w.Close()

	users, err := w.client.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if cmd.Bool("json") {
		items := make([]services.UserItem, len(users))
		for i, u := range users {
			items[i] = services.ItemFromUser(u)
		}
		return r.writeJSON(items, cmd.Bool("pretty"))
	}
	return r.writePlain("%s\n", formatter.UsersTable(users))
}
