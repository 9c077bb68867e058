// Package types defines the wire types shared by the paygate components:
// the x402 payment challenge, the chat-completion envelope, and the
// transaction validation verdict.
package types

import (
	"encoding/json"
	"fmt"
)

// X402Version is the version of the x402 protocol spoken on 402 responses.
const X402Version = 1

// SchemeExact is the only payment scheme the gateway issues: a fixed
// minimum amount to a fixed recipient.
const SchemeExact = "exact"

// PaymentRequirements describes what payment a client must present to
// access a resource. It is returned inside the `accepts` list of an
// HTTP 402 response and is always rebuilt from configuration, never
// stored.
type PaymentRequirements struct {
	// Scheme of the payment protocol (always "exact" here).
	Scheme string `json:"scheme"`

	// Network the payment must be made on (e.g. "base-sepolia").
	Network string `json:"network"`

	// MaxAmountRequired is the amount in atomic token units, as a
	// decimal string because amounts exceed int64.
	MaxAmountRequired string `json:"maxAmountRequired"`

	// Resource is the URL of the resource being paid for.
	Resource string `json:"resource"`

	// Description of what the payment unlocks.
	Description string `json:"description"`

	// MimeType of the resource response, if known.
	MimeType string `json:"mimeType"`

	// PayTo is the address the payment must be sent to.
	PayTo string `json:"payTo"`

	// Token is the symbol of the accepted token (e.g. "PYUSD").
	Token string `json:"token"`
}

// PaymentRequired is the body of every 402 response: a message plus the
// payment options the gateway accepts. Details is only populated when a
// presented proof was rejected.
type PaymentRequired struct {
	Error       string                `json:"error"`
	Details     string                `json:"details,omitempty"`
	Accepts     []PaymentRequirements `json:"accepts"`
	X402Version int                   `json:"x402Version"`
}

// RejectionReason classifies why a payment proof was rejected.
type RejectionReason string

const (
	ReasonNotFound           RejectionReason = "not_found"
	ReasonTxFailed           RejectionReason = "failed"
	ReasonNoTransferEvent    RejectionReason = "no_transfer_event"
	ReasonWrongRecipient     RejectionReason = "wrong_recipient"
	ReasonInsufficientAmount RejectionReason = "insufficient_amount"
	ReasonAlreadyRedeemed    RejectionReason = "already_redeemed"
	ReasonValidationError    RejectionReason = "validation_error"
)

// DecodedTransfer is the token movement decoded from a Transfer event
// on the configured token contract.
type DecodedTransfer struct {
	From          string `json:"from"`
	To            string `json:"to"`
	Value         string `json:"value"`
	Amount        string `json:"amount"`
	Token         string `json:"token"`
	TokenContract string `json:"tokenContract"`
}

// ValidationResult is the verdict of checking a payment transaction
// against the configured requirements. It is produced once per
// validation call and never persisted.
type ValidationResult struct {
	IsValid bool             `json:"isValid"`
	Reason  RejectionReason  `json:"reason,omitempty"`
	Error   string           `json:"error,omitempty"`
	Details *DecodedTransfer `json:"details,omitempty"`
}

// Invalid builds a negative verdict with a classified reason.
func Invalid(reason RejectionReason, format string, args ...any) *ValidationResult {
	return &ValidationResult{
		IsValid: false,
		Reason:  reason,
		Error:   fmt.Sprintf(format, args...),
	}
}

// ChatMessage is one turn of a chat conversation. Content is kept raw
// so structured (multimodal) content passes through untouched.
type ChatMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// chatRequestKnownFields are the envelope fields the gateway interprets.
// Everything else is pass-through.
var chatRequestKnownFields = map[string]bool{
	"model":    true,
	"messages": true,
	"stream":   true,
	"tx_hash":  true,
}

// ChatRequest is the chat-completion envelope. The gateway reads model,
// messages, stream and tx_hash; any additional parameters are collected
// into Extra and forwarded upstream verbatim.
type ChatRequest struct {
	Model    string
	Messages []ChatMessage
	Stream   bool
	TxHash   string

	Extra map[string]json.RawMessage
}

// UnmarshalJSON splits the envelope into its known fields and the open
// pass-through map.
func (r *ChatRequest) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	if raw, ok := fields["model"]; ok {
		if err := json.Unmarshal(raw, &r.Model); err != nil {
			return fmt.Errorf("model: %w", err)
		}
	}
	if raw, ok := fields["messages"]; ok {
		if err := json.Unmarshal(raw, &r.Messages); err != nil {
			return fmt.Errorf("messages: %w", err)
		}
	}
	if raw, ok := fields["stream"]; ok {
		if err := json.Unmarshal(raw, &r.Stream); err != nil {
			return fmt.Errorf("stream: %w", err)
		}
	}
	if raw, ok := fields["tx_hash"]; ok {
		if err := json.Unmarshal(raw, &r.TxHash); err != nil {
			return fmt.Errorf("tx_hash: %w", err)
		}
	}

	for key, raw := range fields {
		if chatRequestKnownFields[key] {
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]json.RawMessage)
		}
		r.Extra[key] = raw
	}
	return nil
}

// UpstreamBody serializes the envelope for the upstream API: the known
// completion fields plus all pass-through parameters, with the payment
// proof consumed.
func (r *ChatRequest) UpstreamBody() ([]byte, error) {
	body := make(map[string]json.RawMessage, len(r.Extra)+3)
	for key, raw := range r.Extra {
		body[key] = raw
	}

	model, err := json.Marshal(r.Model)
	if err != nil {
		return nil, err
	}
	body["model"] = model

	messages, err := json.Marshal(r.Messages)
	if err != nil {
		return nil, err
	}
	body["messages"] = messages

	stream, err := json.Marshal(r.Stream)
	if err != nil {
		return nil, err
	}
	body["stream"] = stream

	return json.Marshal(body)
}

// HasProof reports whether the caller attached a payment proof.
func (r *ChatRequest) HasProof() bool {
	return r.TxHash != ""
}

// GatewayError is a structured error for configuration and transport
// faults inside the gateway.
type GatewayError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *GatewayError) Error() string {
	return e.Message
}

// Common error codes.
const (
	ErrConfigError   = "CONFIG_ERROR"
	ErrUpstreamError = "UPSTREAM_ERROR"
	ErrNetworkError  = "NETWORK_ERROR"
)
