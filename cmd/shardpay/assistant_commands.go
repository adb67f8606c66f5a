package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
)

func assistantCommands() *cli.Command {
	return &cli.Command{
		Name:  "assistant",
		Usage: "AI assistant commands",
		Subcommands: []*cli.Command{
			{
				Name:      "receipt",
				Usage:     "Suggest shares for a receipt (read from FILE or stdin)",
				ArgsUsage: "[FILE]",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "name", Aliases: []string{"n"}, Usage: "Participant name (defaults to the bill's participants)"},
					&cli.BoolFlag{Name: "apply", Usage: "Write the suggested total and shares onto the bill"},
				},
				Action: func(c *cli.Context) error {
					receipt, err := readInput(c.Args().First(), c.App.Reader)
					if err != nil {
						return err
					}
					r, err := newClient(c).ParseReceipt(c.Context, receipt, c.StringSlice("name"), c.Bool("apply"))
					if err != nil {
						return err
					}
					return emit(c, r, func(w io.Writer) {
						fmt.Fprintf(w, "Total: %s\n", r.Suggestion.TotalAmount.String())
						for _, p := range r.Suggestion.Participants {
							fmt.Fprintf(w, "  %-16s %g  %s\n", p.Name, p.Share, p.Reasoning)
						}
						if r.Bill != nil {
							fmt.Fprintln(w)
							printBill(w, r.Bill)
						}
					})
				},
			},
			{
				Name:      "ask",
				Usage:     "Ask the finance assistant a question",
				ArgsUsage: "QUESTION...",
				Action: func(c *cli.Context) error {
					question := strings.Join(c.Args().Slice(), " ")
					answer, err := newClient(c).Ask(c.Context, question)
					if err != nil {
						return err
					}
					return emit(c, map[string]string{"answer": answer}, func(w io.Writer) {
						fmt.Fprintln(w, answer)
					})
				},
			},
		},
	}
}

// readInput reads path, or r when path is empty or "-".
func readInput(path string, r io.Reader) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}
