package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brojonat/shardpay/service/chain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, prompt string, temperature float32) (string, error) {
	args := m.Called(ctx, prompt, temperature)
	return args.String(0), args.Error(1)
}

func newTestAssistant(c Completer) *Assistant {
	a := New(c, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	a.now = func() time.Time { return time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC) }
	return a
}

func TestParseReceipt(t *testing.T) {
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "Receipt: 3 beers, 1 soda, total 20") &&
			strings.Contains(p, "People splitting the bill: Sule, Ada")
	}), float32(receiptTemperature)).Return("```json\n"+splitJSON+"\n```", nil)

	split, err := newTestAssistant(c).ParseReceipt(context.Background(), " 3 beers, 1 soda, total 20 ", []string{"Sule", " ", "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "64.5", split.TotalAmount.String())
	c.AssertExpectations(t)
}

func TestParseReceiptValidation(t *testing.T) {
	c := &mockCompleter{}
	a := newTestAssistant(c)

	_, err := a.ParseReceipt(context.Background(), "  ", []string{"Ada"})
	assert.True(t, chain.IsValidationError(err))

	_, err = a.ParseReceipt(context.Background(), "receipt", []string{"", " "})
	assert.True(t, chain.IsValidationError(err))

	c.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
}

func TestParseReceiptErrors(t *testing.T) {
	t.Run("completion failure", func(t *testing.T) {
		c := &mockCompleter{}
		boom := errors.New("upstream down")
		c.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("", boom)

		_, err := newTestAssistant(c).ParseReceipt(context.Background(), "receipt", []string{"Ada"})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("unusable response", func(t *testing.T) {
		c := &mockCompleter{}
		c.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("Sorry, no idea.", nil)

		_, err := newTestAssistant(c).ParseReceipt(context.Background(), "receipt", []string{"Ada"})
		var pe *ParseError
		assert.ErrorAs(t, err, &pe)
	})
}

func TestAsk(t *testing.T) {
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "Current date: 2025-03-14") &&
			strings.HasSuffix(p, "User: How much should I save?")
	}), float32(chatTemperature)).Return("Start with 10%.", nil)

	a := newTestAssistant(c)
	answer, err := a.Ask(context.Background(), "How much should I save?")
	require.NoError(t, err)
	assert.Equal(t, "Start with 10%.", answer)

	_, err = a.Ask(context.Background(), "   ")
	assert.True(t, chain.IsValidationError(err))
	c.AssertNumberOfCalls(t, "Complete", 1)
}

func TestAskDefaultsLogger(t *testing.T) {
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.Anything, float32(chatTemperature)).Return("", errors.New("upstream down"))

	_, err := New(c, nil, nil).Ask(context.Background(), "How much should I save?")
	require.Error(t, err)
	c.AssertExpectations(t)
}

func TestOpenAICompleter(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gemini-2.0-flash",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "hello"}, "finish_reason": "stop"}]
		}`))
	}))
	defer srv.Close()

	c := NewOpenAICompleter("test-key", srv.URL+"/v1", "gemini-2.0-flash")
	text, err := c.Complete(context.Background(), "hi", 0.3)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	assert.Equal(t, "gemini-2.0-flash", got["model"])
	assert.InDelta(t, 0.3, got["temperature"], 0.0001)
	assert.EqualValues(t, DefaultMaxTokens, got["max_tokens"])
	messages := got["messages"].([]any)
	require.Len(t, messages, 1)
	assert.Equal(t, "hi", messages[0].(map[string]any)["content"])
}

func TestOpenAICompleterEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAICompleter("k", srv.URL, "m").Complete(context.Background(), "hi", 0.7)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
