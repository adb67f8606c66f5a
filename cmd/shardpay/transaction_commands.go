package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/brojonat/shardpay/client"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

func transactionCommands() *cli.Command {
	return &cli.Command{
		Name:    "transactions",
		Aliases: []string{"txns", "tx"},
		Usage:   "Transaction history and streaming commands",
		Subcommands: []*cli.Command{
			listTransactionsCommand(),
			awaitCommand(),
			watchCommand(),
		},
	}
}

func listTransactionsCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List journaled transactions",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "address", Aliases: []string{"a"}, Usage: "Only transactions from or to this address"},
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "Only this kind (payment, split, deposit, withdraw, goal_update, micro_save_toggle)"},
			&cli.StringFlag{Name: "search", Usage: "Substring of the memo or counterparty"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 20, Usage: "Maximum number of transactions (1-500)"},
			&cli.IntFlag{Name: "offset", Usage: "Number of transactions to skip"},
		},
		Action: func(c *cli.Context) error {
			txs, err := newClient(c).ListTransactions(c.Context, client.ListTransactionsOptions{
				Address: c.String("address"),
				Kind:    c.String("kind"),
				Search:  c.String("search"),
				Limit:   c.Int("limit"),
				Offset:  c.Int("offset"),
			})
			if err != nil {
				return err
			}
			return emit(c, txs, func(w io.Writer) { printTransactionTable(w, txs) })
		},
	}
}

func printTransactionTable(w io.Writer, txs []client.Transaction) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SUBMITTED\tKIND\tSTATUS\tAMOUNT\tCOUNTERPARTY\tMEMO")
	for _, tx := range txs {
		counterparty := "-"
		if tx.Counterparty != nil {
			counterparty = *tx.Counterparty
		}
		memo := ""
		if tx.Memo != nil {
			memo = *tx.Memo
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\t%s\t%s\n",
			tx.SubmittedAt.Format(time.RFC3339),
			tx.Kind,
			tx.Status,
			tx.Amount,
			tx.Currency,
			counterparty,
			memo,
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\nTotal: %d transactions\n", len(txs))
}

func streamFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "Only events of this kind"},
		&cli.StringFlag{Name: "hash", Usage: "Only the event with this transaction hash"},
		&cli.StringSliceFlag{
			Name:  "must-jq",
			Usage: "jq filter over the event that must evaluate to true (repeatable, all must match)",
		},
	}
}

// eventMatcher builds a predicate from the stream flags.
func eventMatcher(c *cli.Context) (func(*client.TransactionEvent) bool, error) {
	exprs := c.StringSlice("must-jq")
	filters := make([]*gojq.Code, len(exprs))
	for i, expr := range exprs {
		code, err := compileJQ(expr)
		if err != nil {
			return nil, err
		}
		filters[i] = code
	}
	kind, hash := c.String("kind"), c.String("hash")

	return func(ev *client.TransactionEvent) bool {
		if kind != "" && ev.Kind != kind {
			return false
		}
		if hash != "" && ev.Hash != hash {
			return false
		}
		return matchesAll(filters, ev)
	}, nil
}

func awaitCommand() *cli.Command {
	return &cli.Command{
		Name:      "await",
		Usage:     "Block until a transaction matching the filters is published",
		ArgsUsage: "[WALLET_ADDRESS]",
		Flags: append(streamFlags(),
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Value:   5 * time.Minute,
				Usage:   "How long to wait",
			},
		),
		Action: func(c *cli.Context) error {
			match, err := eventMatcher(c)
			if err != nil {
				return err
			}
			address := c.Args().First()

			ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
			defer cancel()

			if !wantJSON(c) {
				fmt.Fprintf(c.App.ErrWriter, "Waiting for transaction (timeout %v)...\n", c.Duration("timeout"))
			}
			ev, err := newClient(c).Await(ctx, address, match)
			if err != nil {
				return fmt.Errorf("failed to await transaction: %w", err)
			}
			return emit(c, ev, func(w io.Writer) { printEvent(w, ev) })
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Print transactions as they are published",
		ArgsUsage: "[WALLET_ADDRESS]",
		Flags:     streamFlags(),
		Action: func(c *cli.Context) error {
			match, err := eventMatcher(c)
			if err != nil {
				return err
			}
			return newClient(c).Stream(c.Context, c.Args().First(), func(ev *client.TransactionEvent) bool {
				if !match(ev) {
					return true
				}
				if err := emit(c, ev, func(w io.Writer) { printEvent(w, ev); fmt.Fprintln(w) }); err != nil {
					fmt.Fprintln(c.App.ErrWriter, err)
				}
				return true
			})
		},
	}
}

func printEvent(w io.Writer, ev *client.TransactionEvent) {
	fmt.Fprintf(w, "Hash:      %s\n", ev.Hash)
	fmt.Fprintf(w, "Wallet:    %s\n", ev.WalletAddress)
	fmt.Fprintf(w, "Kind:      %s\n", ev.Kind)
	fmt.Fprintf(w, "Status:    %s\n", ev.Status)
	if ev.Amount != "" {
		fmt.Fprintf(w, "Amount:    %s %s\n", ev.Amount, ev.Currency)
	}
	if ev.Memo != "" {
		fmt.Fprintf(w, "Memo:      %s\n", ev.Memo)
	}
	if ev.ExplorerURL != "" {
		fmt.Fprintf(w, "Explorer:  %s\n", ev.ExplorerURL)
	}
}
