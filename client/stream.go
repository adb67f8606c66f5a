package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Stream delivers transaction events for address (every wallet when empty)
// to fn until ctx is done, the server closes the stream, or fn returns
// false.
func (c *Client) Stream(ctx context.Context, address string, fn func(*TransactionEvent) bool) error {
	path := "/api/v1/stream/transactions"
	if address != "" {
		path += "/" + url.PathEscape(address)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// Streams outlive the regular client timeout.
	hc := *c.httpClient
	hc.Timeout = 0
	resp, err := hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	event := ""
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			event = ""
		case strings.HasPrefix(line, ":"):
			// keepalive
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if event != "" && event != "transaction" {
				continue
			}
			var ev TransactionEvent
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				c.logger.Warn("skipping malformed event", "error", err)
				continue
			}
			if !fn(&ev) {
				return nil
			}
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read failed: %w", err)
	}
	return nil
}

// Await blocks until an event for address satisfies match, or ctx is done.
func (c *Client) Await(ctx context.Context, address string, match func(*TransactionEvent) bool) (*TransactionEvent, error) {
	var found *TransactionEvent
	err := c.Stream(ctx, address, func(ev *TransactionEvent) bool {
		if match(ev) {
			found = ev
			return false
		}
		return true
	})
	if found != nil {
		return found, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("stream closed before a matching transaction arrived")
}
