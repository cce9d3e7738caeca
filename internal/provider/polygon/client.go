package polygon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/toption/optionscan/internal/domain"
)

const expirationLayout = "2006-01-02"

// Config holds client tuning. The defaults keep a free-tier key under its
// per-minute call budget.
type Config struct {
	BaseURL        string
	APIKey         string
	RequestsPerMin float64
	Burst          int
	Timeout        time.Duration
	MaxChainPages  int
}

// DefaultConfig returns the free-tier defaults: 40 calls/minute with a small
// burst, roughly the 1.5s inter-call spacing the budget was sized for.
func DefaultConfig(apiKey string) Config {
	return Config{
		BaseURL:        "https://api.polygon.io",
		APIKey:         apiKey,
		RequestsPerMin: 40,
		Burst:          2,
		Timeout:        15 * time.Second,
		MaxChainPages:  5,
	}
}

// Client is a rate-limited, circuit-broken HTTP client for the Polygon REST
// API. All methods surface failures as typed *Error values; none of them
// ever fabricates fallback data.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewClient builds a client from cfg, applying defaults for zero fields.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.polygon.io"
	}
	if cfg.RequestsPerMin <= 0 {
		cfg.RequestsPerMin = 40
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxChainPages <= 0 {
		cfg.MaxChainPages = 5
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "polygon",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("Provider circuit breaker state change")
		},
	})

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerMin/60.0), cfg.Burst),
		breaker: breaker,
	}
}

// PreviousClose returns the underlying's previous-session close, the price
// basis for strike distance and capital.
func (c *Client) PreviousClose(ctx context.Context, symbol string) (domain.Underlying, error) {
	endpoint := fmt.Sprintf("%s/v2/aggs/ticker/%s/prev", c.cfg.BaseURL, url.PathEscape(symbol))

	var resp prevCloseResponse
	if err := c.getJSON(ctx, "prev_close", symbol, endpoint, &resp); err != nil {
		return domain.Underlying{}, err
	}
	if len(resp.Results) == 0 || resp.Results[0].Close <= 0 {
		return domain.Underlying{}, &Error{
			Op:     "prev_close",
			Symbol: symbol,
			Err:    fmt.Errorf("no price data"),
			// No bar for a symbol the provider knows usually means a halt
			// or holiday, not a delisting.
			Transient: true,
		}
	}

	return domain.Underlying{
		Symbol: symbol,
		Price:  resp.Results[0].Close,
		AsOf:   time.Now().UTC(),
	}, nil
}

// OptionChain returns the current option chain snapshot for underlying,
// following next_url pagination up to MaxChainPages pages.
func (c *Client) OptionChain(ctx context.Context, underlying string) ([]domain.OptionContract, error) {
	endpoint := fmt.Sprintf("%s/v3/snapshot/options/%s?limit=250", c.cfg.BaseURL, url.PathEscape(underlying))

	var contracts []domain.OptionContract
	for page := 0; endpoint != "" && page < c.cfg.MaxChainPages; page++ {
		var resp chainResponse
		if err := c.getJSON(ctx, "option_chain", underlying, endpoint, &resp); err != nil {
			return nil, err
		}

		for _, snap := range resp.Results {
			contract, ok := toContract(underlying, snap)
			if !ok {
				continue
			}
			contracts = append(contracts, contract)
		}
		endpoint = resp.NextURL
	}

	return contracts, nil
}

// getJSON performs one rate-limited GET through the circuit breaker and
// decodes the body into out.
func (c *Client) getJSON(ctx context.Context, op, symbol, endpoint string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &Error{Op: op, Symbol: symbol, Transient: true, Err: err}
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, &Error{Op: op, Symbol: symbol, Transient: false, Err: err}
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, &Error{Op: op, Symbol: symbol, Transient: true, Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return nil, statusError(op, symbol, resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, &Error{Op: op, Symbol: symbol, Transient: true, Err: fmt.Errorf("malformed response: %w", err)}
		}
		return nil, nil
	})
	if err != nil {
		if pe, ok := err.(*Error); ok {
			return pe
		}
		// Breaker-open and too-many-requests errors from gobreaker.
		return &Error{Op: op, Symbol: symbol, Transient: true, Err: err}
	}
	return nil
}

func toContract(underlying string, snap optionSnapshot) (domain.OptionContract, bool) {
	expiration, err := time.Parse(expirationLayout, snap.Details.ExpirationDate)
	if err != nil || snap.Details.StrikePrice <= 0 {
		return domain.OptionContract{}, false
	}

	ctype := domain.ContractCall
	if snap.Details.ContractType == "put" {
		ctype = domain.ContractPut
	}

	quote := domain.Quote{
		Bid:          snap.LastQuote.Bid,
		Ask:          snap.LastQuote.Ask,
		Last:         snap.LastTrade.Price,
		Volume:       int64(snap.Day.Volume),
		OpenInterest: int64(snap.OpenInterest),
		IV:           snap.ImpliedVolatility,
	}
	if g := snap.Greeks; g != nil {
		quote.Greeks = &domain.Greeks{Delta: g.Delta, Gamma: g.Gamma, Theta: g.Theta, Vega: g.Vega}
	}

	return domain.OptionContract{
		Ticker:     snap.Details.Ticker,
		Underlying: underlying,
		Strike:     snap.Details.StrikePrice,
		Expiration: expiration,
		Type:       ctype,
		Quote:      quote,
	}, true
}
