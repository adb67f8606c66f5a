package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/brojonat/shardpay/client"
	"github.com/urfave/cli/v2"
)

func vaultCommands() *cli.Command {
	return &cli.Command{
		Name:  "vault",
		Usage: "Savings vault commands",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the vault summary",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "refresh", Aliases: []string{"r"}, Usage: "Re-read the vault first"},
				},
				Action: func(c *cli.Context) error {
					cl := newClient(c)
					var v *client.Vault
					var err error
					if c.Bool("refresh") {
						v, err = cl.RefreshVault(c.Context)
					} else {
						v, err = cl.Vault(c.Context)
					}
					if err != nil {
						return err
					}
					return emit(c, v, func(w io.Writer) { printVault(w, v) })
				},
			},
			{
				Name:      "goal",
				Usage:     "Set the savings goal",
				ArgsUsage: "AMOUNT",
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return fmt.Errorf("amount is required")
					}
					tx, err := newClient(c).SetGoal(c.Context, c.Args().First())
					return transactionResult(c, tx, err)
				},
			},
			{
				Name:      "deposit",
				Usage:     "Move funds into the vault",
				ArgsUsage: "AMOUNT",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "memo", Aliases: []string{"m"}, Usage: "Memo recorded with the deposit"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return fmt.Errorf("amount is required")
					}
					tx, err := newClient(c).Deposit(c.Context, c.Args().First(), c.String("memo"))
					return transactionResult(c, tx, err)
				},
			},
			{
				Name:      "withdraw",
				Usage:     "Move funds out of the vault",
				ArgsUsage: "AMOUNT",
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return fmt.Errorf("amount is required")
					}
					tx, err := newClient(c).Withdraw(c.Context, c.Args().First())
					return transactionResult(c, tx, err)
				},
			},
			{
				Name:      "micro-save",
				Usage:     "Turn micro-saving on or off",
				ArgsUsage: "on|off",
				Action: func(c *cli.Context) error {
					enabled, err := parseToggle(c.Args().First())
					if err != nil {
						return err
					}
					tx, err := newClient(c).SetMicroSave(c.Context, enabled)
					return transactionResult(c, tx, err)
				},
			},
		},
	}
}

func parseToggle(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
	return b, nil
}

func printVault(w io.Writer, v *client.Vault) {
	s := v.Summary
	fmt.Fprintf(w, "Saved:       %s\n", s.Saved.String())
	fmt.Fprintf(w, "Goal:        %s\n", s.Goal.String())
	fmt.Fprintf(w, "Progress:    %.1f%%\n", s.ProgressPct)
	fmt.Fprintf(w, "Micro-save:  %t\n", s.MicroSaveEnabled)
	if s.LastError != "" {
		fmt.Fprintf(w, "Warning:     %s\n", s.LastError)
	}
	if len(v.Recent) == 0 {
		return
	}
	fmt.Fprintln(w, "\nRecent:")
	for _, tx := range v.Recent {
		fmt.Fprintf(w, "  %-18s %-8s %s %s\n", tx.Kind, tx.Status, tx.Amount, tx.Currency)
	}
}
