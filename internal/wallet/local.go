package wallet

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/mbd888/walletguard/internal/chains"
)

// DefaultConfirmTimeout bounds how long SubmitAndConfirm waits for a
// receipt before giving up.
const DefaultConfirmTimeout = 30 * time.Second

// confirmPollInterval is the receipt polling period.
var confirmPollInterval = 2 * time.Second

// EthClient abstracts the go-ethereum client so tests can fake the
// network. ethclient.Client satisfies it.
type EthClient interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	NetworkID(ctx context.Context) (*big.Int, error)
	Close()
}

// LocalAdapter signs in-process with raw key material. Connect is
// synchronous: the address derives directly from the key, so the handle
// is effectively permanent once constructed.
type LocalAdapter struct {
	chain    chains.Type
	keypair  chains.Keypair
	endpoint string
	chainID  *big.Int

	mu        sync.Mutex
	connected bool
	client    EthClient
}

// LocalOption configures a LocalAdapter.
type LocalOption func(*LocalAdapter)

// WithEndpoint sets the RPC endpoint used by SubmitAndConfirm.
func WithEndpoint(url string) LocalOption {
	return func(a *LocalAdapter) { a.endpoint = url }
}

// WithChainID sets the chain ID applied to transaction requests that do
// not carry one.
func WithChainID(id int64) LocalOption {
	return func(a *LocalAdapter) { a.chainID = big.NewInt(id) }
}

// WithClient injects a network client, bypassing the endpoint dial.
// Useful in tests.
func WithClient(client EthClient) LocalOption {
	return func(a *LocalAdapter) { a.client = client }
}

// NewLocalAdapter constructs an adapter from chain-native private key
// material. Unrecognized chains and malformed keys fail construction.
func NewLocalAdapter(privateKey string, chain chains.Type, registry *chains.Registry, opts ...LocalOption) (*LocalAdapter, error) {
	caps, err := registry.Get(chain)
	if err != nil {
		return nil, err
	}
	kp, err := caps.ParseKey(privateKey)
	if err != nil {
		return nil, err
	}
	a := &LocalAdapter{chain: chain, keypair: kp}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func newLocalAdapterFromKeypair(kp chains.Keypair, chain chains.Type, opts ...LocalOption) *LocalAdapter {
	a := &LocalAdapter{chain: chain, keypair: kp}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *LocalAdapter) ChainType() chains.Type { return a.chain }

// Connect marks the handle connected. The address is derivable
// immediately, so there is nothing to wait for.
func (a *LocalAdapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = true
	return nil
}

// Disconnect marks the handle disconnected and closes any client.
func (a *LocalAdapter) Disconnect() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = false
	if a.client != nil {
		a.client.Close()
		a.client = nil
	}
	return nil
}

func (a *LocalAdapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

func (a *LocalAdapter) Address() (string, error) {
	if !a.Connected() {
		return "", ErrNotConnected
	}
	return a.keypair.Address(), nil
}

func (a *LocalAdapter) SignMessage(ctx context.Context, message []byte) (string, error) {
	if !a.Connected() {
		return "", ErrNotConnected
	}
	return a.keypair.SignMessage(message)
}

func (a *LocalAdapter) SignTransaction(ctx context.Context, tx *chains.TxRequest) (*chains.SignedTx, error) {
	if !a.Connected() {
		return nil, ErrNotConnected
	}
	if tx.ChainID == nil && a.chainID != nil {
		withID := *tx
		withID.ChainID = a.chainID
		return a.keypair.SignTransaction(&withID)
	}
	return a.keypair.SignTransaction(tx)
}

// Receipt describes a confirmed submission.
type Receipt struct {
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
}

// SubmitAndConfirm signs tx, submits it to the configured endpoint, and
// polls until it is mined or ctx's deadline passes. Only the EVM family
// has a submit path here; the context must carry a deadline or be
// cancellable, and no adapter lock is held while waiting.
func (a *LocalAdapter) SubmitAndConfirm(ctx context.Context, tx *chains.TxRequest) (*Receipt, error) {
	if !a.Connected() {
		return nil, ErrNotConnected
	}
	if a.chain == chains.Solana {
		return nil, fmt.Errorf("%w: %s", ErrSubmitUnsupported, a.chain)
	}

	client, err := a.dialClient()
	if err != nil {
		return nil, err
	}

	prepared := *tx
	if prepared.ChainID == nil {
		if a.chainID != nil {
			prepared.ChainID = a.chainID
		} else {
			id, err := client.NetworkID(ctx)
			if err != nil {
				return nil, &SubmitError{Op: "network_id", Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
			}
			prepared.ChainID = id
		}
	}
	if prepared.Nonce == 0 {
		nonce, err := client.PendingNonceAt(ctx, common.HexToAddress(a.keypair.Address()))
		if err != nil {
			return nil, &SubmitError{Op: "nonce", Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
		}
		prepared.Nonce = nonce
	}
	if prepared.GasPrice == nil {
		gasPrice, err := client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, &SubmitError{Op: "gas_price", Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
		}
		prepared.GasPrice = gasPrice
	}

	signed, err := a.keypair.SignTransaction(&prepared)
	if err != nil {
		return nil, &SubmitError{Op: "sign", Err: err}
	}
	raw, err := decodeRawTx(signed.Raw)
	if err != nil {
		return nil, &SubmitError{Op: "decode", TxHash: signed.Hash, Err: err}
	}
	if err := client.SendTransaction(ctx, raw); err != nil {
		return nil, &SubmitError{Op: "send", TxHash: signed.Hash, Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
	}

	return a.waitForReceipt(ctx, client, signed.Hash)
}

// dialClient returns the injected client or dials the endpoint. Missing
// endpoint configuration is surfaced, never silently skipped.
func (a *LocalAdapter) dialClient() (EthClient, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client != nil {
		return a.client, nil
	}
	if a.endpoint == "" {
		return nil, ErrNoEndpoint
	}
	client, err := ethclient.Dial(a.endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	a.client = client
	return client, nil
}

func (a *LocalAdapter) waitForReceipt(ctx context.Context, client EthClient, txHash string) (*Receipt, error) {
	hash := common.HexToHash(txHash)

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultConfirmTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return nil, &SubmitError{Op: "confirm", TxHash: txHash, Err: ErrTimeout}
			}
			return nil, ctx.Err()

		case <-ticker.C:
			receipt, err := client.TransactionReceipt(ctx, hash)
			if err != nil {
				// Not mined yet, keep polling.
				continue
			}
			if receipt.Status == types.ReceiptStatusFailed {
				return nil, &SubmitError{Op: "confirm", TxHash: txHash, Err: ErrTxFailed}
			}
			return &Receipt{
				TxHash:      txHash,
				BlockNumber: receipt.BlockNumber.Uint64(),
				GasUsed:     receipt.GasUsed,
			}, nil
		}
	}
}

func decodeRawTx(rawHex string) (*types.Transaction, error) {
	raw, err := hexutil.Decode(rawHex)
	if err != nil {
		return nil, err
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	return tx, nil
}
