// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"codeberg.org/oliverandrich/waitlist/internal/config"
	"codeberg.org/oliverandrich/waitlist/internal/database"
	"codeberg.org/oliverandrich/waitlist/internal/models"
	"codeberg.org/oliverandrich/waitlist/internal/repository"
	"codeberg.org/oliverandrich/waitlist/internal/server"
	"codeberg.org/oliverandrich/waitlist/internal/services/email"
	"github.com/urfave/cli/v3"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the database schema",
		Commands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "Apply all pending migrations",
				Action: withSchema(database.RunMigrations),
			},
			{
				Name:   "down",
				Usage:  "Roll back the last migration",
				Action: withSchema(database.MigrateDown),
			},
			{
				Name:   "reset",
				Usage:  "Roll back all migrations",
				Action: withSchema(database.MigrateReset),
			},
			{
				Name:   "status",
				Usage:  "Print the current schema version",
				Action: withSchema(nil),
			},
		},
	}
}

// withSchema runs fn against the configured database and prints the
// resulting schema version.
func withSchema(fn func(db *sql.DB) error) cli.ActionFunc {
	return func(_ context.Context, cmd *cli.Command) error {
		cfg := config.NewFromCLI(cmd)

		db, err := database.Connect(cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() { _ = database.Close(db) }()

		if fn != nil {
			if err := fn(db.DB); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
		}

		version, err := database.Version(db.DB)
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		_, err = fmt.Fprintf(out(cmd), "schema version: %d\n", version)
		return err
	}
}

func countCommand() *cli.Command {
	return &cli.Command{
		Name:  "count",
		Usage: "Print the number of signups",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.NewFromCLI(cmd)

			db, err := database.Open(cfg.Database.DSN)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer func() { _ = database.Close(db) }()

			repo := repository.New(db)
			total, err := repo.CountEntries(ctx)
			if err != nil {
				return err
			}
			confirmed, err := repo.CountConfirmed(ctx)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(out(cmd), "total: %d\nconfirmed: %d\nunconfirmed: %d\n",
				total, confirmed, total-confirmed)
			return err
		},
	}
}

func emailFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "email",
		Usage:    "Email address the token belongs to",
		Required: true,
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Issue or check confirmation tokens",
		Commands: []*cli.Command{
			{
				Name:  "issue",
				Usage: "Issue a confirmation token and print the link",
				Flags: []cli.Flag{emailFlag()},
				Action: func(_ context.Context, cmd *cli.Command) error {
					cfg := config.NewFromCLI(cmd)
					addr, err := models.ValidateEmail(cmd.String("email"))
					if err != nil {
						return err
					}

					tok, err := server.NewTokenService(cfg).Issue(addr)
					if err != nil {
						return err
					}

					w := out(cmd)
					if _, err := fmt.Fprintln(w, tok); err != nil {
						return err
					}
					_, err = fmt.Fprintln(w, email.NewService(nil, email.Options{BaseURL: cfg.Server.BaseURL}).ConfirmURL(tok, addr))
					return err
				},
			},
			{
				Name:  "verify",
				Usage: "Check a confirmation token",
				Flags: []cli.Flag{
					emailFlag(),
					&cli.StringFlag{
						Name:     "token",
						Usage:    "Token to verify",
						Required: true,
					},
				},
				Action: func(_ context.Context, cmd *cli.Command) error {
					cfg := config.NewFromCLI(cmd)
					addr := models.NormalizeEmail(cmd.String("email"))

					if !server.NewTokenService(cfg).Verify(cmd.String("token"), addr) {
						return errors.New("token is invalid or expired")
					}
					_, err := fmt.Fprintln(out(cmd), "valid")
					return err
				},
			},
		},
	}
}

func out(cmd *cli.Command) io.Writer {
	return cmd.Root().Writer
}
