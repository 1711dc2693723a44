// Package wallet provides the signing abstraction over chain-specific
// backends: injected out-of-process providers (browser extensions and
// their equivalents) and in-process local keys. Adapters share one state
// machine: disconnected -> Connect -> connected -> Disconnect ->
// disconnected; signing and address access are only valid while connected.
package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/mbd888/walletguard/internal/chains"
)

var (
	// ErrNotConnected marks a usage error: signing or address access
	// before Connect. It is a programming defect, not a security verdict.
	ErrNotConnected = errors.New("wallet: not connected")

	// ErrNoProvider is returned when no injected signing context is
	// available for the requested chain in this environment.
	ErrNoProvider = errors.New("wallet: no injected provider available")

	// ErrNoEndpoint marks a configuration error: a network-bound
	// operation was requested without an RPC endpoint.
	ErrNoEndpoint = errors.New("wallet: RPC endpoint required")

	// ErrNetwork marks a transient RPC failure, distinguishable from an
	// invalid signature or a rejected transaction.
	ErrNetwork = errors.New("wallet: network unreachable")

	// ErrTxFailed is returned when a submitted transaction was mined but
	// reverted.
	ErrTxFailed = errors.New("wallet: transaction failed")

	// ErrTimeout is returned when confirmation polling exceeds its
	// deadline.
	ErrTimeout = errors.New("wallet: operation timed out")

	// ErrSubmitUnsupported is returned for chains whose submit path is
	// not wired in this build.
	ErrSubmitUnsupported = errors.New("wallet: submit not supported for chain")
)

// SubmitError wraps submit-and-confirm failures with operation context.
type SubmitError struct {
	Op     string
	TxHash string
	Err    error
}

func (e *SubmitError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("wallet: %s failed (tx: %s): %v", e.Op, e.TxHash, e.Err)
	}
	return fmt.Sprintf("wallet: %s failed: %v", e.Op, e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// Adapter is the capability interface consumers hold. Implementations
// differ per backend; consumers never see which one they got.
type Adapter interface {
	// ChainType identifies the chain this adapter signs for.
	ChainType() chains.Type
	// Connect establishes the handle. For injected providers this
	// requests account access; for local keys it is immediate.
	Connect(ctx context.Context) error
	// Disconnect releases the handle. Safe to call when disconnected.
	Disconnect() error
	// Connected reports the handle state.
	Connected() bool
	// Address returns the active address. Fails with ErrNotConnected
	// when disconnected.
	Address() (string, error)
	// SignMessage signs arbitrary bytes with the chain's message scheme.
	SignMessage(ctx context.Context, message []byte) (string, error)
	// SignTransaction signs a transaction request.
	SignTransaction(ctx context.Context, tx *chains.TxRequest) (*chains.SignedTx, error)
}
