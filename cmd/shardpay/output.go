package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/brojonat/shardpay/client"
	"github.com/brojonat/shardpay/service/logging"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

// newClient builds an API client from the global flags. Logs go to stderr
// in colored text so they never mix with command output.
func newClient(c *cli.Context) *client.Client {
	return client.NewClient(c.String("server-url"), nil, newLogger(c))
}

func newLogger(c *cli.Context) *slog.Logger {
	return logging.NewWithWriter(c.App.ErrWriter, c.String("log-level"), "text")
}

func wantJSON(c *cli.Context) bool {
	return c.Bool("json") || c.String("jq") != ""
}

// emit writes v as JSON when requested, otherwise calls pretty.
func emit(c *cli.Context, v interface{}, pretty func(w io.Writer)) error {
	if !wantJSON(c) {
		pretty(c.App.Writer)
		return nil
	}
	return outputJSON(c.App.Writer, v, c.String("jq"))
}

// outputJSON writes v as indented JSON, or the results of expr applied to
// it.
func outputJSON(w io.Writer, v interface{}, expr string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if expr == "" {
		return enc.Encode(v)
	}

	code, err := compileJQ(expr)
	if err != nil {
		return err
	}
	doc, err := toJQValue(v)
	if err != nil {
		return err
	}
	iter := code.Run(doc)
	for {
		out, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, isErr := out.(error); isErr {
			return fmt.Errorf("jq evaluation failed: %w", err)
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
}

func compileJQ(expr string) (*gojq.Code, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", expr, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", expr, err)
	}
	return code, nil
}

// toJQValue converts v into the plain maps and slices gojq operates on.
func toJQValue(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal output: %w", err)
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal output: %w", err)
	}
	return doc, nil
}

// matchesAll reports whether every filter yields a truthy first result
// for v.
func matchesAll(filters []*gojq.Code, v interface{}) bool {
	if len(filters) == 0 {
		return true
	}
	doc, err := toJQValue(v)
	if err != nil {
		return false
	}
	for _, code := range filters {
		iter := code.Run(doc)
		out, ok := iter.Next()
		if !ok {
			return false
		}
		if _, isErr := out.(error); isErr {
			return false
		}
		if !isTruthy(out) {
			return false
		}
	}
	return true
}

func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	// Everything else (numbers, strings, objects, arrays) is truthy
	return true
}

func printTransaction(w io.Writer, tx *client.Transaction) {
	fmt.Fprintf(w, "ID:        %s\n", tx.ID)
	fmt.Fprintf(w, "Kind:      %s\n", tx.Kind)
	fmt.Fprintf(w, "Status:    %s\n", tx.Status)
	if tx.Amount != "" {
		fmt.Fprintf(w, "Amount:    %s %s\n", tx.Amount, tx.Currency)
	}
	if tx.Counterparty != nil {
		fmt.Fprintf(w, "To:        %s\n", *tx.Counterparty)
	}
	if tx.Memo != nil && *tx.Memo != "" {
		fmt.Fprintf(w, "Memo:      %s\n", *tx.Memo)
	}
	if tx.BlockNumber != 0 {
		fmt.Fprintf(w, "Block:     %d\n", tx.BlockNumber)
	}
	if tx.ExplorerURL != "" {
		fmt.Fprintf(w, "Explorer:  %s\n", tx.ExplorerURL)
	}
}

// transactionResult prints a submission result. A failed submission that
// was broadcast still shows its record before the error is returned.
func transactionResult(c *cli.Context, tx *client.Transaction, err error) error {
	if tx != nil {
		if outErr := emit(c, tx, func(w io.Writer) { printTransaction(w, tx) }); outErr != nil {
			return outErr
		}
	}
	return err
}
