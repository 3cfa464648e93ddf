// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
			Value: true,
		},
	}
}

func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "event",
			Usage: "Only records of this event (records without an event are always shown)",
		},
		&cli.StringFlag{
			Name:  "name",
			Usage: "Only records whose name contains this text",
		},
		&cli.StringSliceFlag{
			Name:  "stage",
			Usage: "Stage filter as stage=state, e.g. cam=complete or final=na (repeatable)",
		},
		&cli.BoolFlag{
			Name:  "pending",
			Usage: "Only records with unsubmitted changes",
		},
	}
}

func draftFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "name",
			Usage: "Record name",
		},
		&cli.StringFlag{
			Name:  "event",
			Usage: "Event name",
		},
		&cli.StringFlag{
			Name:  "date",
			Usage: "Displayed date (YYYY-MM-DD)",
		},
		&cli.StringFlag{
			Name:  "description",
			Usage: "Free-form description",
		},
		&cli.IntSliceFlag{
			Name:  "producer",
			Usage: "Producer user id (repeatable, replaces the producer set)",
		},
	}
}

// setupCommand handles setup operations for configuration and the local database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the config file if missing and initialize the local state database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}

// authCommand handles login state
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the logged-in session",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Log in with nickname and password",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "nickname",
						Aliases:  []string{"u"},
						Usage:    "Account nickname",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "password",
						Aliases:  []string{"p"},
						Usage:    "Account password",
						Sources:  cli.EnvVars("YMLIB_PASSWORD"),
						Required: true,
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored session",
				Action: r.AuthLogout,
			},
			{
				Name:   "whoami",
				Usage:  "Show the logged-in user",
				Action: r.AuthWhoami,
			},
		},
	}
}

// usersCommand lists the user directory
func usersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "User directory",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List users",
				Flags:  jsonFlags(),
				Action: r.UsersList,
			},
		},
	}
}

// backupCommand handles backup status records and their stage changes
func backupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "backup",
		Aliases: []string{"b"},
		Usage:   "Backup status records",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List records with pending changes applied",
				Flags: append(append(filterFlags(), jsonFlags()...),
					&cli.BoolFlag{
						Name:  "refresh",
						Usage: "Reload from the server first (drops pending changes)",
					},
					&cli.BoolFlag{
						Name:  "plain",
						Usage: "Tab-separated output even on a terminal",
					},
				),
				Action: r.BackupList,
			},
			{
				Name:      "show",
				Usage:     "Show one record",
				ArgsUsage: "<id>",
				Flags:     jsonFlags(),
				Action:    r.BackupShow,
			},
			{
				Name:      "toggle",
				Usage:     "Toggle stages of a record in the pending changes",
				ArgsUsage: "<id> <stage>...",
				Action:    r.BackupToggle,
			},
			{
				Name:   "pending",
				Usage:  "List unsubmitted stage changes",
				Action: r.BackupPending,
			},
			{
				Name:      "submit",
				Usage:     "Submit pending changes of one record, or of all with --all",
				ArgsUsage: "[<id>]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Submit every record with pending changes",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent submissions with --all",
						Value: 4,
					},
					&cli.FloatFlag{
						Name:  "rate",
						Usage: "Submissions per second with --all",
						Value: 5,
					},
				},
				Action: r.BackupSubmit,
			},
			{
				Name:      "discard",
				Usage:     "Drop pending changes of one record, or of all with --all",
				ArgsUsage: "[<id>]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Discard every pending change",
					},
				},
				Action: r.BackupDiscard,
			},
			{
				Name:  "create",
				Usage: "Create a record",
				Flags: append(draftFlags(),
					&cli.StringSliceFlag{
						Name:  "skip",
						Usage: "Stage that does not apply to this record (repeatable)",
					},
				),
				Action: r.BackupCreate,
			},
			{
				Name:      "update",
				Aliases:   []string{"edit"},
				Usage:     "Change the fields of a record; unset flags keep their values",
				ArgsUsage: "<id>",
				Flags:     draftFlags(),
				Action:    r.BackupUpdate,
			},
			{
				Name:      "delete",
				Usage:     "Delete a record",
				ArgsUsage: "<id>",
				Action:    r.BackupDelete,
			},
			{
				Name:   "reload",
				Usage:  "Reload records from the server, dropping pending changes",
				Action: r.BackupReload,
			},
			{
				Name:  "export",
				Usage: "Export records grouped by date",
				Flags: append(filterFlags(),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "csv, markdown, txt or json",
						Value:   "markdown",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (default: backup_status.<ext>)",
					},
				),
				Action: r.BackupExport,
			},
		},
	}
}

// catalogCommand lists the archive catalog
func catalogCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Archive storage catalog",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List catalog items",
				Flags:  jsonFlags(),
				Action: r.CatalogList,
			},
		},
	}
}

// serveCommand runs the development backend
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the development tracking backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default: server.host:server.port)",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "Backend database path (default: server.database_path)",
			},
			&cli.StringSliceFlag{
				Name:  "user",
				Usage: "Seed a user as name:nickname:password (repeatable, existing nicknames are skipped)",
			},
		},
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command for the interactive tracker board.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive tracker board",
		Action:  r.TUI,
	}
}
