package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/brojonat/shardpay/service/db"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create the transaction journal schema",
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			if err := store.Migrate(c.Context); err != nil {
				return fmt.Errorf("failed to migrate: %w", err)
			}
			fmt.Fprintln(c.App.Writer, "✓ Schema is up to date")
			return nil
		},
	}
}

func journalCommand() *cli.Command {
	return &cli.Command{
		Name:  "journal",
		Usage: "Read the journal directly from the database",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "address", Aliases: []string{"a"}, Usage: "Only transactions from or to this address"},
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "Only this kind"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 20, Usage: "Maximum number of transactions"},
		},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			records, err := store.ListTransactions(c.Context, db.ListTransactionsParams{
				Address: c.String("address"),
				Kind:    c.String("kind"),
				Limit:   int32(c.Int("limit")),
			})
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}
			return emit(c, records, func(w io.Writer) {
				for _, r := range records {
					fmt.Fprintf(w, "%s  %-18s %-8s %s %s\n",
						r.SubmittedAt.Format(time.RFC3339), r.Kind, r.Status, r.Amount, r.Currency)
				}
				fmt.Fprintf(w, "\nTotal: %d transactions\n", len(records))
			})
		},
	}
}

func pruneCommand() *cli.Command {
	return &cli.Command{
		Name:  "prune",
		Usage: "Delete journal entries older than a retention window",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "older-than",
				Value: 90 * 24 * time.Hour,
				Usage: "Retention window",
			},
		},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			before := time.Now().Add(-c.Duration("older-than"))
			n, err := store.DeleteTransactionsOlderThan(c.Context, before)
			if err != nil {
				return fmt.Errorf("failed to prune: %w", err)
			}
			fmt.Fprintf(c.App.Writer, "✓ Deleted %d transactions submitted before %s\n", n, before.Format(time.RFC3339))
			return nil
		},
	}
}

func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := db.NewStore(pool, nil, newLogger(c))
	closer := func() { pool.Close() }

	return store, closer, nil
}
