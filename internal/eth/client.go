// Package eth reads chain state needed by the push service through an
// Ethereum JSON-RPC endpoint.
package eth

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/safe-mobile/safe-push/pkg/address"
)

// safeVersionABI describes the VERSION() getter every Safe contract exposes
const safeVersionABI = `[{"inputs":[],"name":"VERSION","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"}]`

// Client wraps an Ethereum RPC client
type Client struct {
	client  *ethclient.Client
	chainID *big.Int
	safeABI abi.ABI
}

// NewClient connects to rpcURL and detects the chain ID
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("RPC URL is required")
	}

	parsed, err := abi.JSON(strings.NewReader(safeVersionABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse safe ABI: %w", err)
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	return &Client{
		client:  client,
		chainID: chainID,
		safeABI: parsed,
	}, nil
}

// ChainID returns the chain ID
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// IsContract reports whether addr has code deployed
func (c *Client) IsContract(ctx context.Context, addr address.Address) (bool, error) {
	code, err := c.client.CodeAt(ctx, addr.Common(), nil)
	if err != nil {
		return false, fmt.Errorf("failed to get code: %w", err)
	}
	return len(code) > 0, nil
}

// SafeVersion reads the contract version of a Safe, such as "1.3.0"
func (c *Client) SafeVersion(ctx context.Context, safe address.Address) (string, error) {
	data, err := c.safeABI.Pack("VERSION")
	if err != nil {
		return "", err
	}

	to := safe.Common()
	out, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to call VERSION: %w", err)
	}

	values, err := c.safeABI.Unpack("VERSION", out)
	if err != nil {
		return "", fmt.Errorf("failed to decode VERSION: %w", err)
	}
	version, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("unexpected VERSION result %T", values[0])
	}
	return version, nil
}

// Close closes the RPC connection
func (c *Client) Close() {
	c.client.Close()
}
