// Package validator checks a payment transaction hash against the
// configured payment constraints: the transaction must be mined and
// successful, and must carry a Transfer event on the configured token
// contract that pays at least the minimum amount to the configured
// recipient.
package validator

import (
	"context"
	"errors"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/x402lab/paygate/chain"
	"github.com/x402lab/paygate/config"
	"github.com/x402lab/paygate/logger"
	"github.com/x402lab/paygate/metrics"
	"github.com/x402lab/paygate/types"
	"github.com/x402lab/paygate/utils"
)

// transferEventSignature is the solidity signature of the standard
// ERC20 Transfer event whose hash forms topic0 of every transfer log.
const transferEventSignature = "Transfer(address,address,uint256)"

// TxValidator validates payment proofs against the chain. It performs
// read-only queries and is safe for concurrent use.
type TxValidator struct {
	reader  chain.Reader
	cfg     *config.Config
	log     logger.Logger
	rec     metrics.Recorder
	topic   common.Hash
	payTo   common.Address
	token   common.Address
}

// New creates a validator bound to one ledger reader and one immutable
// configuration. Logger and recorder may be nil.
func New(reader chain.Reader, cfg *config.Config, log logger.Logger, rec metrics.Recorder) *TxValidator {
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}

	return &TxValidator{
		reader: reader,
		cfg:    cfg,
		log:    log,
		rec:    rec,
		topic:  crypto.Keccak256Hash([]byte(transferEventSignature)),
		payTo:  common.HexToAddress(cfg.PaymentRecipient),
		token:  common.HexToAddress(cfg.TokenAddress),
	}
}

// Validate checks one transaction hash and returns a verdict. It never
// returns an error: RPC and decoding failures surface as an invalid
// verdict with a generic reason, so a broken chain connection degrades
// into payment rejections rather than request crashes. The same hash
// against the same chain state always yields the same verdict.
func (v *TxValidator) Validate(ctx context.Context, txHash string) *types.ValidationResult {
	started := time.Now()
	result := v.validate(ctx, txHash)
	v.rec.ObserveLatency("validate", time.Since(started), map[string]string{"network": v.cfg.Network})
	v.rec.IncCounter("validations_total", map[string]string{"result": resultLabel(result)})

	if !result.IsValid {
		v.log.Info("payment proof rejected", map[string]any{
			"txHash": txHash,
			"reason": string(result.Reason),
			"error":  result.Error,
		})
	}
	return result
}

func (v *TxValidator) validate(ctx context.Context, txHash string) *types.ValidationResult {
	if err := utils.ValidateTransactionHash(txHash); err != nil {
		return types.Invalid(types.ReasonValidationError, "invalid transaction hash: %v", err)
	}
	hash := common.HexToHash(txHash)

	receipt, err := v.reader.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return types.Invalid(types.ReasonNotFound, "transaction not found or not mined")
		}
		v.log.Error("receipt lookup failed", map[string]any{"txHash": txHash, "error": err.Error()})
		return types.Invalid(types.ReasonValidationError, "could not fetch transaction receipt")
	}
	if receipt == nil {
		return types.Invalid(types.ReasonNotFound, "transaction not found or not mined")
	}

	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return types.Invalid(types.ReasonTxFailed, "transaction failed")
	}

	// The body is only auxiliary context; the verdict rests on the
	// receipt logs. A vanished body still counts as not found.
	if _, _, err := v.reader.TransactionByHash(ctx, hash); err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return types.Invalid(types.ReasonNotFound, "transaction details not found")
		}
		v.log.Error("transaction lookup failed", map[string]any{"txHash": txHash, "error": err.Error()})
		return types.Invalid(types.ReasonValidationError, "could not fetch transaction")
	}

	transferLog := v.findTransferLog(receipt.Logs)
	if transferLog == nil {
		return types.Invalid(types.ReasonNoTransferEvent, "no %s transfer found in transaction", v.cfg.TokenSymbol)
	}

	transfer, err := decodeTransfer(transferLog)
	if err != nil {
		return types.Invalid(types.ReasonValidationError, "could not decode transfer event: %v", err)
	}

	if transfer.to != v.payTo {
		return types.Invalid(types.ReasonWrongRecipient,
			"invalid recipient. Expected: %s, Got: %s", v.payTo.Hex(), transfer.to.Hex())
	}

	// Minimum, not exact match: overpayment is accepted. The
	// comparison stays on integers; decimals are display only.
	if transfer.value.Cmp(v.cfg.MinAmount) < 0 {
		return types.Invalid(types.ReasonInsufficientAmount,
			"insufficient amount. Expected: %s %s, Got: %s %s",
			utils.FormatAmountFromBigInt(v.cfg.MinAmount, v.cfg.TokenDecimals), v.cfg.TokenSymbol,
			utils.FormatAmountFromBigInt(transfer.value, v.cfg.TokenDecimals), v.cfg.TokenSymbol)
	}

	return &types.ValidationResult{
		IsValid: true,
		Details: &types.DecodedTransfer{
			From:          transfer.from.Hex(),
			To:            transfer.to.Hex(),
			Value:         transfer.value.String(),
			Amount:        utils.FormatAmountFromBigInt(transfer.value, v.cfg.TokenDecimals),
			Token:         v.cfg.TokenSymbol,
			TokenContract: v.token.Hex(),
		},
	}
}

// findTransferLog returns the first log emitted by the configured token
// contract whose topic0 is the Transfer signature. Receipt logs are
// scanned in emission order.
func (v *TxValidator) findTransferLog(logs []*gethtypes.Log) *gethtypes.Log {
	for _, entry := range logs {
		if !strings.EqualFold(entry.Address.Hex(), v.token.Hex()) {
			continue
		}
		if len(entry.Topics) == 0 || entry.Topics[0] != v.topic {
			continue
		}
		return entry
	}
	return nil
}

func resultLabel(result *types.ValidationResult) string {
	if result.IsValid {
		return "valid"
	}
	return string(result.Reason)
}
