package main

import (
	"fmt"
	"io"

	"github.com/brojonat/shardpay/client"
	"github.com/urfave/cli/v2"
)

func sessionCommands() *cli.Command {
	show := func(action func(c *cli.Context, cl *client.Client) (*client.Session, error)) cli.ActionFunc {
		return func(c *cli.Context) error {
			s, err := action(c, newClient(c))
			if err != nil {
				return err
			}
			return emit(c, s, func(w io.Writer) { printSession(w, s) })
		}
	}

	return &cli.Command{
		Name:    "session",
		Aliases: []string{"wallet"},
		Usage:   "Wallet session commands",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the current wallet session",
				Action: show(func(c *cli.Context, cl *client.Client) (*client.Session, error) {
					return cl.Session(c.Context)
				}),
			},
			{
				Name:  "connect",
				Usage: "Prompt the wallet for an account",
				Action: show(func(c *cli.Context, cl *client.Client) (*client.Session, error) {
					return cl.Connect(c.Context)
				}),
			},
			{
				Name:  "disconnect",
				Usage: "Forget the connected account",
				Action: show(func(c *cli.Context, cl *client.Client) (*client.Session, error) {
					return cl.Disconnect(c.Context)
				}),
			},
			{
				Name:  "refresh",
				Usage: "Re-read the wallet balance",
				Action: show(func(c *cli.Context, cl *client.Client) (*client.Session, error) {
					return cl.RefreshBalance(c.Context)
				}),
			},
			{
				Name:  "ensure-network",
				Usage: "Switch the wallet to the expected network, adding it if needed",
				Action: show(func(c *cli.Context, cl *client.Client) (*client.Session, error) {
					return cl.EnsureNetwork(c.Context)
				}),
			},
			{
				Name:  "network",
				Usage: "Show the expected network",
				Action: func(c *cli.Context) error {
					n, err := newClient(c).Network(c.Context)
					if err != nil {
						return err
					}
					return emit(c, n, func(w io.Writer) {
						fmt.Fprintf(w, "Network:   %s\n", n.Name)
						fmt.Fprintf(w, "Chain ID:  %d (%s)\n", n.ChainID, n.ChainIDHex)
						fmt.Fprintf(w, "Currency:  %s (%d decimals)\n", n.Currency.Symbol, n.Currency.Decimals)
						fmt.Fprintf(w, "RPC:       %s\n", n.RPCURL)
						fmt.Fprintf(w, "Explorer:  %s\n", n.ExplorerURL)
					})
				},
			},
		},
	}
}

func printSession(w io.Writer, s *client.Session) {
	if !s.Connected() {
		fmt.Fprintf(w, "Wallet %s\n", s.State)
		return
	}
	fmt.Fprintf(w, "Address:   %s\n", s.Address)
	fmt.Fprintf(w, "Chain ID:  %d\n", s.ChainID)
	fmt.Fprintf(w, "Balance:   %s %s\n", s.DisplayBalance, s.Currency)
	if !s.OnNetwork {
		fmt.Fprintln(w, "Warning:   wallet is on the wrong network (run `shardpay session ensure-network`)")
	}
	if s.BalanceWarning != "" {
		fmt.Fprintf(w, "Warning:   %s\n", s.BalanceWarning)
	}
}

func payCommand() *cli.Command {
	return &cli.Command{
		Name:      "pay",
		Usage:     "Send native currency and wait for confirmation",
		ArgsUsage: "RECIPIENT AMOUNT",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "memo",
				Aliases: []string{"m"},
				Usage:   "Memo attached to the transaction",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return fmt.Errorf("recipient and amount are required")
			}
			tx, err := newClient(c).Pay(c.Context, c.Args().Get(0), c.Args().Get(1), c.String("memo"))
			return transactionResult(c, tx, err)
		},
	}
}
