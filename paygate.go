// Package paygate implements a payment-gated gateway in front of a
// metered chat-completion API: requests without a verified on-chain
// micropayment are answered with an HTTP 402 challenge, paid requests
// are forwarded upstream and their responses relayed back unchanged.
package paygate

import (
	"net/http"

	"github.com/x402lab/paygate/chain"
	"github.com/x402lab/paygate/config"
	"github.com/x402lab/paygate/logger"
	"github.com/x402lab/paygate/metrics"
	"github.com/x402lab/paygate/policy"
	"github.com/x402lab/paygate/proxy"
	"github.com/x402lab/paygate/redemption"
	"github.com/x402lab/paygate/validator"
)

// Gateway wires the payment policy, the transaction validator and the
// upstream forwarder around one immutable configuration. All state is
// read-only after construction except the optional redemption store;
// requests share nothing else and run independently.
type Gateway struct {
	cfg *config.Config
	log logger.Logger
	rec metrics.Recorder

	reader      chain.Reader
	ownedReader *chain.Client
	redemptions *redemption.Store

	policy    *policy.Policy
	forwarder *proxy.Forwarder

	httpClient *http.Client
}

// New builds a gateway from configuration. A chain connection is only
// dialed when payment enforcement with transaction validation is
// active; a failed dial fails construction so the process never serves
// with a half-working payment path.
func New(cfg *config.Config, opts ...Option) (*Gateway, error) {
	g := &Gateway{
		cfg: cfg,
		log: logger.NoopLogger{},
		rec: metrics.NoopRecorder{},
	}

	for _, opt := range opts {
		opt(g)
	}

	needsChain := cfg.RequirePayment && cfg.ValidateTransactions
	if g.reader == nil && needsChain {
		client, err := chain.Dial(cfg.ChainRPCURL)
		if err != nil {
			return nil, err
		}
		g.reader = client
		g.ownedReader = client
	}

	if cfg.EnforceSingleUse && g.redemptions == nil {
		g.redemptions = redemption.NewStore(cfg.RedemptionTTL)
	}

	var verifier policy.Verifier
	if g.reader != nil {
		verifier = validator.New(g.reader, cfg, g.log, g.rec)
	}

	g.policy = policy.New(cfg, verifier, g.redemptions, g.log)
	g.forwarder = proxy.New(cfg, g.httpClient, g.log, g.rec)

	return g, nil
}

// Policy returns the payment policy.
func (g *Gateway) Policy() *policy.Policy {
	return g.policy
}

// Forwarder returns the upstream forwarder.
func (g *Gateway) Forwarder() *proxy.Forwarder {
	return g.forwarder
}

// Config returns the gateway configuration.
func (g *Gateway) Config() *config.Config {
	return g.cfg
}

// Logger returns the configured logger.
func (g *Gateway) Logger() logger.Logger {
	return g.log
}

// Metrics returns the configured recorder.
func (g *Gateway) Metrics() metrics.Recorder {
	return g.rec
}

// Close releases the chain connection if the gateway dialed it.
func (g *Gateway) Close() {
	if g.ownedReader != nil {
		g.ownedReader.Close()
	}
}
