package polygon

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// QuoteUpdate is one live quote tick for an option contract.
type QuoteUpdate struct {
	Contract string
	Bid      float64
	Ask      float64
	At       time.Time
}

// QuoteHandler receives live quote updates from the stream.
type QuoteHandler func(QuoteUpdate)

// Stream maintains a websocket connection to Polygon's options cluster and
// forwards quote ticks for subscribed contracts. It reconnects with backoff
// and re-subscribes after auth. Quote ticks keep cached opportunities fresh
// between REST scan cycles; they never create opportunities on their own.
type Stream struct {
	url     string
	apiKey  string
	handler QuoteHandler

	mu        sync.Mutex
	conn      *websocket.Conn
	contracts map[string]struct{}
}

// NewStream creates a quote stream. url defaults to Polygon's options
// websocket endpoint when empty.
func NewStream(url, apiKey string, handler QuoteHandler) *Stream {
	if url == "" {
		url = "wss://socket.polygon.io/options"
	}
	return &Stream{
		url:       url,
		apiKey:    apiKey,
		handler:   handler,
		contracts: make(map[string]struct{}),
	}
}

// Subscribe replaces the set of contract tickers the stream watches. Safe
// to call at any time; takes effect immediately on a live connection and is
// replayed after reconnect.
func (s *Stream) Subscribe(contracts []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.contracts = make(map[string]struct{}, len(contracts))
	for _, c := range contracts {
		s.contracts[c] = struct{}{}
	}
	if s.conn != nil {
		if err := s.sendSubscribeLocked(); err != nil {
			log.Warn().Err(err).Msg("Quote stream subscribe failed")
		}
	}
}

// Run connects and pumps messages until ctx is cancelled, reconnecting with
// capped exponential backoff on any failure.
func (s *Stream) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if err := s.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Dur("backoff", backoff).Msg("Quote stream disconnected")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (s *Stream) runOnce(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}()

	auth := map[string]string{"action": "auth", "params": s.apiKey}
	if err := conn.WriteJSON(auth); err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	// Close the connection when the context ends so ReadMessage unblocks.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if err := s.handleMessage(payload); err != nil {
			log.Debug().Err(err).Msg("Quote stream message dropped")
		}
	}
}

type streamEvent struct {
	Event    string  `json:"ev"`
	Status   string  `json:"status"`
	Symbol   string  `json:"sym"`
	BidPrice float64 `json:"bp"`
	AskPrice float64 `json:"ap"`
	UnixMS   int64   `json:"t"`
}

func (s *Stream) handleMessage(payload []byte) error {
	var events []streamEvent
	if err := json.Unmarshal(payload, &events); err != nil {
		return fmt.Errorf("malformed stream payload: %w", err)
	}

	for _, ev := range events {
		switch ev.Event {
		case "status":
			if ev.Status == "auth_success" {
				log.Info().Msg("Quote stream authenticated")
				s.mu.Lock()
				if err := s.sendSubscribeLocked(); err != nil {
					log.Warn().Err(err).Msg("Quote stream resubscribe failed")
				}
				s.mu.Unlock()
			}
		case "Q":
			if s.handler != nil {
				s.handler(QuoteUpdate{
					Contract: ev.Symbol,
					Bid:      ev.BidPrice,
					Ask:      ev.AskPrice,
					At:       time.UnixMilli(ev.UnixMS),
				})
			}
		}
	}
	return nil
}

// sendSubscribeLocked sends one subscribe frame covering every watched
// contract. Caller holds s.mu.
func (s *Stream) sendSubscribeLocked() error {
	if s.conn == nil || len(s.contracts) == 0 {
		return nil
	}
	topics := make([]string, 0, len(s.contracts))
	for c := range s.contracts {
		topics = append(topics, "Q."+c)
	}
	return s.conn.WriteJSON(map[string]string{
		"action": "subscribe",
		"params": strings.Join(topics, ","),
	})
}
