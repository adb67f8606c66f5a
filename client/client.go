package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Client is the HTTP client for the ShardPay API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new ShardPay client. Payments wait for on-chain
// confirmation, so the default timeout is generous.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// APIError is a non-success response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
}

// TransactionError is a failed submission. Record is set when the
// transaction was broadcast (reverted or unconfirmed).
type TransactionError struct {
	APIError
	Record *Transaction
}

func (e *TransactionError) Error() string {
	return e.APIError.Error()
}

// Network returns the chain the server transacts on.
func (c *Client) Network(ctx context.Context) (*Network, error) {
	var n Network
	if err := c.do(ctx, http.MethodGet, "/api/v1/network", nil, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// EnsureNetwork asks the server's wallet to switch to the expected chain.
func (c *Client) EnsureNetwork(ctx context.Context) (*Session, error) {
	return c.session(ctx, http.MethodPost, "/api/v1/network/ensure")
}

// Session returns the current wallet session.
func (c *Client) Session(ctx context.Context) (*Session, error) {
	return c.session(ctx, http.MethodGet, "/api/v1/session")
}

// Connect prompts the wallet for an account.
func (c *Client) Connect(ctx context.Context) (*Session, error) {
	s, err := c.session(ctx, http.MethodPost, "/api/v1/session/connect")
	if err == nil {
		c.logger.Debug("wallet connected", "address", s.Address)
	}
	return s, err
}

// Disconnect clears the wallet session.
func (c *Client) Disconnect(ctx context.Context) (*Session, error) {
	return c.session(ctx, http.MethodPost, "/api/v1/session/disconnect")
}

// RefreshBalance re-reads the wallet balance.
func (c *Client) RefreshBalance(ctx context.Context) (*Session, error) {
	return c.session(ctx, http.MethodPost, "/api/v1/session/refresh")
}

func (c *Client) session(ctx context.Context, method, path string) (*Session, error) {
	var s Session
	if err := c.do(ctx, method, path, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Pay sends amount (whole native units) to the recipient and waits for
// confirmation.
func (c *Client) Pay(ctx context.Context, to, amount, memo string) (*Transaction, error) {
	return c.transact(ctx, "/api/v1/payments", map[string]string{
		"to":     to,
		"amount": amount,
		"memo":   memo,
	})
}

// Vault returns the last known vault summary.
func (c *Client) Vault(ctx context.Context) (*Vault, error) {
	var v Vault
	if err := c.do(ctx, http.MethodGet, "/api/v1/vault", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// RefreshVault re-reads the vault for the connected wallet.
func (c *Client) RefreshVault(ctx context.Context) (*Vault, error) {
	var v Vault
	if err := c.do(ctx, http.MethodPost, "/api/v1/vault/refresh", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// SetGoal sets the savings goal.
func (c *Client) SetGoal(ctx context.Context, amount string) (*Transaction, error) {
	return c.transact(ctx, "/api/v1/vault/goal", map[string]string{"amount": amount})
}

// Deposit moves amount into the vault.
func (c *Client) Deposit(ctx context.Context, amount, memo string) (*Transaction, error) {
	return c.transact(ctx, "/api/v1/vault/deposit", map[string]string{"amount": amount, "memo": memo})
}

// Withdraw moves amount out of the vault.
func (c *Client) Withdraw(ctx context.Context, amount string) (*Transaction, error) {
	return c.transact(ctx, "/api/v1/vault/withdraw", map[string]string{"amount": amount})
}

// SetMicroSave turns micro-saving on or off.
func (c *Client) SetMicroSave(ctx context.Context, enabled bool) (*Transaction, error) {
	return c.transact(ctx, "/api/v1/vault/micro-save", map[string]bool{"enabled": enabled})
}

// Bill returns the split bill.
func (c *Client) Bill(ctx context.Context) (*Bill, error) {
	return c.bill(ctx, http.MethodGet, "/api/v1/split", nil)
}

// SetTotal sets the bill total.
func (c *Client) SetTotal(ctx context.Context, total decimal.Decimal) (*Bill, error) {
	return c.bill(ctx, http.MethodPut, "/api/v1/split/total", map[string]decimal.Decimal{"total_amount": total})
}

// AddParticipant adds a participant to the bill.
func (c *Client) AddParticipant(ctx context.Context, name, walletAddress string, share float64) (*Participant, error) {
	var resp struct {
		Participant Participant `json:"participant"`
	}
	body := map[string]interface{}{
		"name":           name,
		"wallet_address": walletAddress,
		"share":          share,
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/split/participants", body, &resp); err != nil {
		return nil, err
	}
	return &resp.Participant, nil
}

// UpdateParticipant edits a participant.
func (c *Client) UpdateParticipant(ctx context.Context, id string, u ParticipantUpdate) (*Bill, error) {
	return c.bill(ctx, http.MethodPatch, "/api/v1/split/participants/"+url.PathEscape(id), u)
}

// RemoveParticipant removes a participant.
func (c *Client) RemoveParticipant(ctx context.Context, id string) (*Bill, error) {
	return c.bill(ctx, http.MethodDelete, "/api/v1/split/participants/"+url.PathEscape(id), nil)
}

func (c *Client) bill(ctx context.Context, method, path string, body interface{}) (*Bill, error) {
	var b Bill
	if err := c.do(ctx, method, path, body, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Dispatch pays every participant in order. Individual failures are in
// the outcomes.
func (c *Client) Dispatch(ctx context.Context) (*DispatchResult, error) {
	var r DispatchResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/split/dispatch", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Settle pays every participant through the durable settlement workflow.
func (c *Client) Settle(ctx context.Context) (*DispatchResult, error) {
	var r DispatchResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/split/settle", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ParseReceipt asks the assistant to split a receipt. With apply the
// suggestion is written onto the bill.
func (c *Client) ParseReceipt(ctx context.Context, receipt string, names []string, apply bool) (*ReceiptResult, error) {
	var r ReceiptResult
	body := map[string]interface{}{
		"receipt": receipt,
		"names":   names,
		"apply":   apply,
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/receipts/parse", body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Ask asks the finance assistant a question.
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	var r struct {
		Answer string `json:"answer"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/assistant/ask", map[string]string{"question": question}, &r); err != nil {
		return "", err
	}
	return r.Answer, nil
}

// ListTransactions lists the transaction history.
func (c *Client) ListTransactions(ctx context.Context, opts ListTransactionsOptions) ([]Transaction, error) {
	q := url.Values{}
	if opts.Address != "" {
		q.Set("address", opts.Address)
	}
	if opts.Kind != "" {
		q.Set("kind", opts.Kind)
	}
	if opts.Search != "" {
		q.Set("search", opts.Search)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	path := "/api/v1/transactions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var r struct {
		Transactions []Transaction `json:"transactions"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &r); err != nil {
		return nil, err
	}
	return r.Transactions, nil
}

func (c *Client) transact(ctx context.Context, path string, body interface{}) (*Transaction, error) {
	resp, err := c.send(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var r struct {
		Record *Transaction `json:"record"`
		Error  string       `json:"error"`
	}
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(raw)}
	}
	if resp.StatusCode != http.StatusOK {
		return r.Record, &TransactionError{
			APIError: APIError{StatusCode: resp.StatusCode, Message: r.Error},
			Record:   r.Record,
		}
	}
	if r.Record != nil {
		c.logger.Debug("transaction confirmed", "path", path, "id", r.Record.ID)
	}
	return r.Record, nil
}

func (c *Client) send(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// do sends a request and decodes a 2xx JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.parseErrorResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
}
