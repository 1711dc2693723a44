package wallet

import (
	"context"
	"fmt"
	"sync"

	"github.com/mbd888/walletguard/internal/chains"
)

// Provider is the boundary to an externally supplied signing context: a
// browser extension, a companion process, anything that holds the keys
// out of this process. Implementations live with the host application;
// the core only defines the contract.
type Provider interface {
	// ChainType identifies the chain this provider signs for.
	ChainType() chains.Type
	// RequestAccounts asks the external context for access and returns
	// the granted addresses, primary first.
	RequestAccounts(ctx context.Context) ([]string, error)
	// SignMessage delegates message signing for the given address.
	SignMessage(ctx context.Context, address string, message []byte) (string, error)
	// SignTransaction delegates transaction signing for the given address.
	SignTransaction(ctx context.Context, address string, tx *chains.TxRequest) (*chains.SignedTx, error)
}

// InjectedAdapter adapts a Provider to the Adapter interface. Connect
// requests access and records the primary address; signing delegates to
// the external context.
type InjectedAdapter struct {
	provider Provider

	mu        sync.Mutex
	address   string
	connected bool
}

// NewInjectedAdapter wraps an externally supplied provider.
func NewInjectedAdapter(provider Provider) *InjectedAdapter {
	return &InjectedAdapter{provider: provider}
}

func (a *InjectedAdapter) ChainType() chains.Type { return a.provider.ChainType() }

func (a *InjectedAdapter) Connect(ctx context.Context) error {
	accounts, err := a.provider.RequestAccounts(ctx)
	if err != nil {
		return fmt.Errorf("wallet: provider rejected connection: %w", err)
	}
	if len(accounts) == 0 {
		return fmt.Errorf("wallet: provider returned no accounts")
	}

	a.mu.Lock()
	a.address = accounts[0]
	a.connected = true
	a.mu.Unlock()
	return nil
}

func (a *InjectedAdapter) Disconnect() error {
	a.mu.Lock()
	a.address = ""
	a.connected = false
	a.mu.Unlock()
	return nil
}

func (a *InjectedAdapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

func (a *InjectedAdapter) Address() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return "", ErrNotConnected
	}
	return a.address, nil
}

func (a *InjectedAdapter) SignMessage(ctx context.Context, message []byte) (string, error) {
	addr, err := a.Address()
	if err != nil {
		return "", err
	}
	return a.provider.SignMessage(ctx, addr, message)
}

func (a *InjectedAdapter) SignTransaction(ctx context.Context, tx *chains.TxRequest) (*chains.SignedTx, error) {
	addr, err := a.Address()
	if err != nil {
		return nil, err
	}
	return a.provider.SignTransaction(ctx, addr, tx)
}
