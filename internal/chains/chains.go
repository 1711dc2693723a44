// Package chains defines the per-chain capability contracts used by the
// risk engine and the wallet layer, plus the registry that selects an
// implementation by chain selector. Supporting a new chain means writing
// one Capabilities implementation and registering it; nothing in the
// callers changes.
package chains

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
)

// Type selects a supported blockchain.
type Type string

const (
	Ethereum Type = "ethereum"
	Polygon  Type = "polygon"
	BSC      Type = "bsc"
	Solana   Type = "solana"
)

var ErrUnsupportedChain = errors.New("chains: unsupported chain")

// ParseType converts a chain selector string into a Type.
func ParseType(s string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case Ethereum:
		return Ethereum, nil
	case Polygon:
		return Polygon, nil
	case BSC:
		return BSC, nil
	case Solana:
		return Solana, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedChain, s)
}

// TxRequest describes a transaction to sign, in chain-agnostic terms.
// Fields a chain does not use are ignored by its signer.
type TxRequest struct {
	To       string
	Value    *big.Int
	Nonce    uint64
	GasLimit uint64
	GasPrice *big.Int
	ChainID  *big.Int
	Data     []byte
}

// SignedTx is a signed transaction in the chain's wire encoding.
type SignedTx struct {
	Raw  string // chain-native encoding of the signed transaction
	Hash string // chain-native transaction identifier
}

// AddressValidator checks address syntax for one chain family.
type AddressValidator interface {
	// ValidateAddress returns nil when the address is well formed for the
	// chain, or a descriptive error otherwise.
	ValidateAddress(address string) error
}

// SignatureVerifier checks message signatures for one chain family.
type SignatureVerifier interface {
	// VerifySignature returns nil when signature over message was produced
	// by the key behind publicKeyOrAddress. For recovery-based schemes the
	// third argument is an address; for direct schemes it is a public key.
	VerifySignature(message []byte, signature, publicKeyOrAddress string) error
}

// Keypair is in-process key material for one chain.
type Keypair interface {
	// Address derives the chain-native address for the public key.
	Address() string
	// Export returns the private key in the chain's conventional encoding.
	Export() string
	// SignMessage signs arbitrary bytes using the chain's message scheme.
	SignMessage(message []byte) (string, error)
	// SignTransaction signs a transaction request.
	SignTransaction(tx *TxRequest) (*SignedTx, error)
}

// KeyFactory parses and generates key material for one chain family.
type KeyFactory interface {
	ParseKey(privateKey string) (Keypair, error)
	GenerateKey() (Keypair, error)
}

// Capabilities is the full per-chain contract.
type Capabilities interface {
	AddressValidator
	SignatureVerifier
	KeyFactory
}

// Registry maps chain selectors to their Capabilities implementation.
type Registry struct {
	mu   sync.RWMutex
	caps map[Type]Capabilities
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{caps: make(map[Type]Capabilities)}
}

// DefaultRegistry returns a registry with all built-in chains: the EVM
// family (ethereum, polygon, bsc share one implementation) and solana.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	evm := &EVM{}
	r.Register(Ethereum, evm)
	r.Register(Polygon, evm)
	r.Register(BSC, evm)
	r.Register(Solana, &SolanaChain{})
	return r
}

// Register binds a chain selector to an implementation, replacing any
// previous binding.
func (r *Registry) Register(t Type, c Capabilities) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caps[t] = c
}

// Get returns the Capabilities for a chain, or ErrUnsupportedChain.
func (r *Registry) Get(t Type) (Capabilities, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedChain, t)
	}
	return c, nil
}

// Supported reports whether a chain has a registered implementation.
func (r *Registry) Supported(t Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.caps[t]
	return ok
}
