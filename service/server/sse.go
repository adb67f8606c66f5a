package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/shardpay/service/chain"
	"github.com/brojonat/shardpay/service/metrics"
	natspkg "github.com/brojonat/shardpay/service/nats"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const sseKeepalive = 10 * time.Second

// SSEPublisher streams settled transactions from NATS to Server-Sent Events
// clients.
type SSEPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger
}

// NewSSEPublisher connects to NATS for streaming.
func NewSSEPublisher(natsURL string, logger *slog.Logger) (*SSEPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, js, err := natspkg.Connect(natsURL, "shardpay-sse-publisher")
	if err != nil {
		return nil, err
	}

	logger.Info("SSE publisher initialized", "nats_url", natsURL)

	return &SSEPublisher{
		nc:     nc,
		js:     js,
		logger: logger,
	}, nil
}

// Close closes the NATS connection.
func (p *SSEPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("SSE publisher closed")
	}
	return nil
}

// handleStreamTransactions streams transaction events. Without an address
// path parameter every wallet's events are streamed.
func handleStreamTransactions(publisher *SSEPublisher, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")

		subject := natspkg.StreamSubjects
		walletDesc := "all wallets"
		if address != "" {
			addr, err := chain.ValidateAddress(address)
			if err != nil {
				writeDomainError(w, r, logger, err)
				return
			}
			subject = natspkg.Subject(addr.Hex())
			walletDesc = addr.Hex()
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		flusher, _ := w.(http.Flusher)
		flush := func() {
			if flusher != nil {
				flusher.Flush()
			}
		}
		flush()

		m.RecordSSEConnectionChange(walletDesc, 1)
		defer m.RecordSSEConnectionChange(walletDesc, -1)

		logger.DebugContext(r.Context(), "SSE client connected",
			"wallet", walletDesc,
			"remote_addr", r.RemoteAddr,
		)

		// Ephemeral consumer; only events published after it is created.
		cons, err := publisher.js.CreateOrUpdateConsumer(r.Context(), natspkg.StreamName, jetstream.ConsumerConfig{
			FilterSubject: subject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			DeliverPolicy: jetstream.DeliverNewPolicy,
		})
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to create consumer",
				"wallet", walletDesc,
				"error", err,
			)
			fmt.Fprintf(w, "event: error\ndata: {\"error\": \"failed to subscribe\"}\n\n")
			return
		}

		msgChan := make(chan jetstream.Msg, 10)
		doneChan := make(chan struct{})

		go func() {
			defer close(doneChan)
			cc, err := cons.Consume(func(msg jetstream.Msg) {
				select {
				case msgChan <- msg:
				case <-r.Context().Done():
				}
			})
			if err != nil {
				logger.ErrorContext(r.Context(), "failed to start consuming messages", "error", err)
				return
			}
			<-r.Context().Done()
			cc.Stop()
		}()

		connected, _ := json.Marshal(map[string]string{"wallet": walletDesc})
		fmt.Fprintf(w, "event: connected\ndata: %s\n\n", connected)
		flush()
		m.RecordSSEEventSent(walletDesc, "connected")

		keepalive := time.NewTicker(sseKeepalive)
		defer keepalive.Stop()

		for {
			select {
			case <-keepalive.C:
				fmt.Fprintf(w, ": keepalive\n\n")
				flush()

			case msg := <-msgChan:
				var event natspkg.TransactionEvent
				if err := json.Unmarshal(msg.Data(), &event); err != nil {
					logger.WarnContext(r.Context(), "failed to unmarshal event", "error", err)
					msg.Ack()
					continue
				}

				data, err := json.Marshal(event)
				if err != nil {
					logger.WarnContext(r.Context(), "failed to marshal event", "error", err)
					msg.Ack()
					continue
				}

				fmt.Fprintf(w, "event: transaction\ndata: %s\n\n", data)
				flush()
				msg.Ack()
				m.RecordSSEEventSent(walletDesc, "transaction")

				logger.DebugContext(r.Context(), "sent transaction event",
					"wallet", walletDesc,
					"hash", event.Hash,
					"kind", event.Kind,
				)

			case <-r.Context().Done():
				logger.DebugContext(r.Context(), "SSE client disconnected",
					"wallet", walletDesc,
					"remote_addr", r.RemoteAddr,
				)
				return

			case <-doneChan:
				return
			}
		}
	})
}
