package paygate

import (
	"net/http"

	"github.com/x402lab/paygate/chain"
	"github.com/x402lab/paygate/logger"
	"github.com/x402lab/paygate/metrics"
	"github.com/x402lab/paygate/redemption"
)

// Option configures a Gateway at construction time.
type Option func(*Gateway)

// WithLogger sets the logger used by all components.
func WithLogger(l logger.Logger) Option {
	return func(g *Gateway) {
		g.log = l
	}
}

// WithMetrics sets the metrics recorder used by all components.
func WithMetrics(r metrics.Recorder) Option {
	return func(g *Gateway) {
		g.rec = r
	}
}

// WithReader sets the ledger reader, replacing the dialed chain client.
func WithReader(r chain.Reader) Option {
	return func(g *Gateway) {
		g.reader = r
	}
}

// WithRedemptions sets the redeemed-hash store.
func WithRedemptions(s *redemption.Store) Option {
	return func(g *Gateway) {
		g.redemptions = s
	}
}

// WithHTTPClient sets the HTTP client used for upstream calls.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) {
		g.httpClient = c
	}
}
