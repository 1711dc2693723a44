package wallet

import (
	"fmt"
	"sync"

	"github.com/mbd888/walletguard/internal/chains"
)

// Factory produces adapters by chain type and delivery mode. Injected
// providers are registered by the host environment at startup; local
// adapters are constructed on demand from key material.
type Factory struct {
	registry *chains.Registry

	mu        sync.RWMutex
	providers map[chains.Type]Provider
}

// NewFactory creates a factory over the given chain registry.
func NewFactory(registry *chains.Registry) *Factory {
	return &Factory{
		registry:  registry,
		providers: make(map[chains.Type]Provider),
	}
}

// RegisterProvider makes an injected signing context available for its
// chain, replacing any previous one.
func (f *Factory) RegisterProvider(p Provider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.providers[p.ChainType()] = p
}

// CreateInjected returns an adapter bound to the environment's provider
// for the chain. Fails with ErrNoProvider when none was registered.
func (f *Factory) CreateInjected(chain chains.Type) (*InjectedAdapter, error) {
	f.mu.RLock()
	p, ok := f.providers[chain]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoProvider, chain)
	}
	return NewInjectedAdapter(p), nil
}

// CreateLocal constructs a LocalAdapter from private key material.
func (f *Factory) CreateLocal(privateKey string, chain chains.Type, opts ...LocalOption) (*LocalAdapter, error) {
	return NewLocalAdapter(privateKey, chain, f.registry, opts...)
}

// GenerateEphemeral creates a fresh keypair for the chain and wraps it in
// a LocalAdapter. The raw private key is returned alongside; callers are
// expected to hand it to the ephemeral vault rather than hold it.
func (f *Factory) GenerateEphemeral(chain chains.Type, opts ...LocalOption) (*LocalAdapter, string, error) {
	caps, err := f.registry.Get(chain)
	if err != nil {
		return nil, "", err
	}
	kp, err := caps.GenerateKey()
	if err != nil {
		return nil, "", fmt.Errorf("wallet: generate keypair: %w", err)
	}
	return newLocalAdapterFromKeypair(kp, chain, opts...), kp.Export(), nil
}
