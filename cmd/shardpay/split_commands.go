package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/brojonat/shardpay/client"
	"github.com/brojonat/shardpay/service/split"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

func splitCommands() *cli.Command {
	return &cli.Command{
		Name:  "split",
		Usage: "Split bill commands",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the bill",
				Action: func(c *cli.Context) error {
					b, err := newClient(c).Bill(c.Context)
					if err != nil {
						return err
					}
					return emitBill(c, b)
				},
			},
			{
				Name:      "total",
				Usage:     "Set the bill total",
				ArgsUsage: "AMOUNT",
				Action: func(c *cli.Context) error {
					total, err := decimal.NewFromString(c.Args().First())
					if err != nil {
						return fmt.Errorf("invalid total %q: %w", c.Args().First(), err)
					}
					b, err := newClient(c).SetTotal(c.Context, total)
					if err != nil {
						return err
					}
					return emitBill(c, b)
				},
			},
			{
				Name:      "add",
				Usage:     "Add a participant",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "wallet", Aliases: []string{"w"}, Usage: "Participant wallet address"},
					&cli.Float64Flag{Name: "share", Value: 1, Usage: "Relative share of the bill"},
				},
				Action: func(c *cli.Context) error {
					p, err := newClient(c).AddParticipant(c.Context, c.Args().First(), c.String("wallet"), c.Float64("share"))
					if err != nil {
						return err
					}
					return emit(c, p, func(w io.Writer) {
						fmt.Fprintf(w, "Added %s (%s), owes %s\n", displayName(p.Name), p.ID, p.OwedAmount.StringFixed(split.Places))
					})
				},
			},
			{
				Name:      "update",
				Usage:     "Edit a participant",
				ArgsUsage: "PARTICIPANT_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "New name"},
					&cli.StringFlag{Name: "wallet", Aliases: []string{"w"}, Usage: "New wallet address"},
					&cli.Float64Flag{Name: "share", Usage: "New share"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return fmt.Errorf("participant id is required")
					}
					var u client.ParticipantUpdate
					if c.IsSet("name") {
						name := c.String("name")
						u.Name = &name
					}
					if c.IsSet("wallet") {
						addr := c.String("wallet")
						u.WalletAddress = &addr
					}
					if c.IsSet("share") {
						share := c.Float64("share")
						u.Share = &share
					}
					b, err := newClient(c).UpdateParticipant(c.Context, c.Args().First(), u)
					if err != nil {
						return err
					}
					return emitBill(c, b)
				},
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm"},
				Usage:     "Remove a participant",
				ArgsUsage: "PARTICIPANT_ID",
				Action: func(c *cli.Context) error {
					b, err := newClient(c).RemoveParticipant(c.Context, c.Args().First())
					if err != nil {
						return err
					}
					return emitBill(c, b)
				},
			},
			{
				Name:  "dispatch",
				Usage: "Pay every participant in order",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "durable", Usage: "Run through the durable settlement workflow"},
				},
				Action: func(c *cli.Context) error {
					cl := newClient(c)
					var r *client.DispatchResult
					var err error
					if c.Bool("durable") {
						r, err = cl.Settle(c.Context)
					} else {
						r, err = cl.Dispatch(c.Context)
					}
					if err != nil {
						return err
					}
					return emit(c, r, func(w io.Writer) { printOutcomes(w, r.Outcomes) })
				},
			},
			calcCommand(),
		},
	}
}

// calcCommand computes owed amounts locally without a server.
func calcCommand() *cli.Command {
	return &cli.Command{
		Name:      "calc",
		Usage:     "Compute owed amounts for a total and shares without a server",
		ArgsUsage: "TOTAL NAME=SHARE...",
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return fmt.Errorf("total and at least one NAME=SHARE are required")
			}
			bill, err := calculate(c.Args().First(), c.Args().Tail())
			if err != nil {
				return err
			}
			v := bill.View()
			if wantJSON(c) {
				return outputJSON(c.App.Writer, v, c.String("jq"))
			}
			printBill(c.App.Writer, viewToBill(v))
			return nil
		},
	}
}

func calculate(totalArg string, pairs []string) (*split.Bill, error) {
	total, err := decimal.NewFromString(totalArg)
	if err != nil {
		return nil, fmt.Errorf("invalid total %q: %w", totalArg, err)
	}
	bill := split.NewBill()
	if err := bill.SetTotal(total); err != nil {
		return nil, err
	}
	for _, pair := range pairs {
		name, shareStr, ok := strings.Cut(pair, "=")
		share := 1.0
		if ok {
			share, err = strconv.ParseFloat(shareStr, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid share in %q: %w", pair, err)
			}
		}
		if _, err := bill.Add(name, "", share); err != nil {
			return nil, fmt.Errorf("%s: %w", pair, err)
		}
	}
	return bill, nil
}

func viewToBill(v split.View) *client.Bill {
	b := &client.Bill{TotalAmount: v.TotalAmount, TotalShares: v.TotalShares}
	for _, p := range v.Participants {
		b.Participants = append(b.Participants, client.Participant{
			ID:            p.ID,
			Name:          p.Name,
			WalletAddress: p.WalletAddress,
			Share:         p.Share,
			OwedAmount:    p.OwedAmount,
			PaymentStatus: string(p.PaymentStatus),
		})
	}
	return b
}

func emitBill(c *cli.Context, b *client.Bill) error {
	return emit(c, b, func(w io.Writer) { printBill(w, b) })
}

func displayName(name string) string {
	if name == "" {
		return "(unnamed)"
	}
	return name
}

func printBill(w io.Writer, b *client.Bill) {
	fmt.Fprintf(w, "Total: %s  Shares: %g\n\n", b.TotalAmount.StringFixed(split.Places), b.TotalShares)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSHARE\tOWES\tSTATUS\tWALLET\tID")
	for _, p := range b.Participants {
		wallet := p.WalletAddress
		if wallet == "" {
			wallet = "-"
		}
		fmt.Fprintf(tw, "%s\t%g\t%s\t%s\t%s\t%s\n",
			displayName(p.Name),
			p.Share,
			p.OwedAmount.StringFixed(split.Places),
			p.PaymentStatus,
			wallet,
			p.ID,
		)
	}
	tw.Flush()
}

func printOutcomes(w io.Writer, outcomes []client.Outcome) {
	var failed int
	for _, o := range outcomes {
		switch {
		case o.Status == string(split.StatusSuccess):
			hash := ""
			if o.Record != nil && o.Record.ReceiptHash != nil {
				hash = *o.Record.ReceiptHash
			}
			fmt.Fprintf(w, "✓ %s paid %s\n", displayName(o.Name), hash)
		default:
			failed++
			fmt.Fprintf(w, "✗ %s: %s\n", displayName(o.Name), o.Error)
		}
	}
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "\n%d of %d payments failed\n", failed, len(outcomes))
	}
}
