// Package chain provides a read-only client to an EVM JSON-RPC
// endpoint. It fetches transaction receipts and bodies by hash and
// carries no business logic.
package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Reader is the ledger view the transaction validator depends on.
// Implementations must be safe for concurrent use; the gateway shares
// one Reader across all requests.
type Reader interface {
	// TransactionReceipt returns the receipt of a mined transaction.
	// A transaction that is unknown or not yet mined yields
	// ethereum.NotFound.
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)

	// TransactionByHash returns the transaction body. isPending
	// reports whether the transaction has not been mined yet.
	TransactionByHash(ctx context.Context, txHash common.Hash) (tx *gethtypes.Transaction, isPending bool, err error)
}

var _ Reader = (*Client)(nil)

// Client is a Reader backed by go-ethereum's RPC client. The underlying
// connection pool is reused across concurrent validations.
type Client struct {
	rpcURL string
	client *ethclient.Client
}

// Dial connects to the given JSON-RPC endpoint.
func Dial(rpcURL string) (*Client, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain RPC %s: %w", rpcURL, err)
	}

	return &Client{
		rpcURL: rpcURL,
		client: client,
	}, nil
}

// TransactionReceipt implements Reader.
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	return c.client.TransactionReceipt(ctx, txHash)
}

// TransactionByHash implements Reader.
func (c *Client) TransactionByHash(ctx context.Context, txHash common.Hash) (*gethtypes.Transaction, bool, error) {
	return c.client.TransactionByHash(ctx, txHash)
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.client.Close()
}
