// Package policy decides, per request, whether payment enforcement
// applies and what the caller must pay. It owns the construction of the
// x402 challenge; verification of presented proofs is delegated to the
// transaction validator.
package policy

import (
	"context"

	"github.com/x402lab/paygate/config"
	"github.com/x402lab/paygate/logger"
	"github.com/x402lab/paygate/redemption"
	"github.com/x402lab/paygate/types"
	"github.com/x402lab/paygate/utils"
)

// Action is the outcome kind of a policy decision.
type Action int

const (
	// ActionAllow lets the request through to the upstream.
	ActionAllow Action = iota
	// ActionChallenge rejects with 402 because no proof was presented.
	ActionChallenge
	// ActionReject rejects with 402 because the presented proof failed
	// validation. The caller must pay again; this is not transient.
	ActionReject
)

// Decision carries the action plus the challenge to present on 402
// responses and, when a proof was checked, the validation verdict.
type Decision struct {
	Action    Action
	Challenge *types.PaymentRequirements
	Result    *types.ValidationResult
}

// Verifier checks a payment proof. Implemented by validator.TxValidator.
type Verifier interface {
	Validate(ctx context.Context, txHash string) *types.ValidationResult
}

// Policy is stateless apart from the optional redemption store; every
// challenge is rebuilt from configuration at decision time.
type Policy struct {
	cfg         *config.Config
	verifier    Verifier
	redemptions *redemption.Store
	log         logger.Logger
}

// New creates a policy. The redemption store may be nil, in which case
// single-use enforcement is off regardless of configuration.
func New(cfg *config.Config, verifier Verifier, redemptions *redemption.Store, log logger.Logger) *Policy {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Policy{
		cfg:         cfg,
		verifier:    verifier,
		redemptions: redemptions,
		log:         log,
	}
}

// Decide evaluates payment enforcement for one request. resource is the
// URL of the endpoint being gated, echoed into the challenge.
//
// Validation strictly precedes any upstream work: a Challenge decision
// short-circuits before a single chain RPC call is made, and an Allow
// decision is only returned after the proof (when required) has been
// verified.
func (p *Policy) Decide(ctx context.Context, req *types.ChatRequest, resource string) Decision {
	if !p.cfg.RequirePayment {
		return Decision{Action: ActionAllow}
	}

	if !req.HasProof() {
		return Decision{
			Action:    ActionChallenge,
			Challenge: p.BuildChallenge(resource),
		}
	}

	// Trust-boundary relaxation for degraded or trusted environments:
	// any presented proof is accepted unverified.
	if !p.cfg.ValidateTransactions {
		p.log.Warn("transaction validation disabled, accepting proof unverified", map[string]any{
			"txHash": req.TxHash,
		})
		return Decision{Action: ActionAllow}
	}

	result := p.verifier.Validate(ctx, req.TxHash)
	if !result.IsValid {
		return Decision{
			Action:    ActionReject,
			Challenge: p.BuildChallenge(resource),
			Result:    result,
		}
	}

	if p.cfg.EnforceSingleUse && p.redemptions != nil {
		if !p.redemptions.Redeem(req.TxHash) {
			return Decision{
				Action:    ActionReject,
				Challenge: p.BuildChallenge(resource),
				Result:    types.Invalid(types.ReasonAlreadyRedeemed, "payment transaction already redeemed"),
			}
		}
	}

	return Decision{Action: ActionAllow, Result: result}
}

// BuildChallenge constructs a fresh payment challenge from the current
// configuration. Challenges are pure output and never reused across
// resources or amounts.
func (p *Policy) BuildChallenge(resource string) *types.PaymentRequirements {
	amount := utils.FormatAmountFromBigInt(p.cfg.MinAmount, p.cfg.TokenDecimals)

	return &types.PaymentRequirements{
		Scheme:            types.SchemeExact,
		Network:           p.cfg.Network,
		MaxAmountRequired: p.cfg.MinAmount.String(),
		Resource:          resource,
		Description:       "Payment of " + amount + " " + p.cfg.TokenSymbol + " per chat completion request",
		MimeType:          "",
		PayTo:             p.cfg.PaymentRecipient,
		Token:             p.cfg.TokenSymbol,
	}
}
