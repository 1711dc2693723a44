package wallet

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/walletguard/internal/chains"
	"github.com/mbd888/walletguard/internal/vault"
)

func newLocalEVM(t *testing.T, opts ...LocalOption) *LocalAdapter {
	t.Helper()
	kp, err := chains.EVM{}.GenerateKey()
	require.NoError(t, err)
	a, err := NewLocalAdapter(kp.Export(), chains.Ethereum, chains.DefaultRegistry(), opts...)
	require.NoError(t, err)
	return a
}

func TestLocalAdapterStateMachine(t *testing.T) {
	a := newLocalEVM(t)
	ctx := context.Background()

	// Everything fails fast before Connect.
	_, err := a.Address()
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = a.SignMessage(ctx, []byte("m"))
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = a.SignTransaction(ctx, &chains.TxRequest{})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.False(t, a.Connected())

	require.NoError(t, a.Connect(ctx))
	assert.True(t, a.Connected())

	addr, err := a.Address()
	require.NoError(t, err)
	assert.NotEmpty(t, addr)

	sig, err := a.SignMessage(ctx, []byte("m"))
	require.NoError(t, err)
	assert.NotEmpty(t, sig)

	require.NoError(t, a.Disconnect())
	assert.False(t, a.Connected())
	_, err = a.Address()
	assert.ErrorIs(t, err, ErrNotConnected)

	// Reconnect works.
	require.NoError(t, a.Connect(ctx))
	assert.True(t, a.Connected())
}

func TestLocalAdapterAppliesConfiguredChainID(t *testing.T) {
	a := newLocalEVM(t, WithChainID(137))
	ctx := context.Background()
	require.NoError(t, a.Connect(ctx))

	// No chain ID on the request: the adapter's applies.
	signed, err := a.SignTransaction(ctx, &chains.TxRequest{
		To: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, signed.Raw)

	// An explicit chain ID on the request wins.
	signed, err = a.SignTransaction(ctx, &chains.TxRequest{
		To:      "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		ChainID: big.NewInt(1),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, signed.Raw)
}

func TestNewLocalAdapterErrors(t *testing.T) {
	registry := chains.DefaultRegistry()

	_, err := NewLocalAdapter("whatever", chains.Type("ripple"), registry)
	assert.ErrorIs(t, err, chains.ErrUnsupportedChain)

	_, err = NewLocalAdapter("not-a-key", chains.Ethereum, registry)
	assert.ErrorIs(t, err, chains.ErrInvalidPrivateKey)
}

func TestFactoryCreateLocalSolana(t *testing.T) {
	f := NewFactory(chains.DefaultRegistry())
	kp, err := chains.SolanaChain{}.GenerateKey()
	require.NoError(t, err)

	a, err := f.CreateLocal(kp.Export(), chains.Solana)
	require.NoError(t, err)
	require.NoError(t, a.Connect(context.Background()))

	addr, err := a.Address()
	require.NoError(t, err)
	assert.Equal(t, kp.Address(), addr)
}

func TestFactoryGenerateEphemeral(t *testing.T) {
	f := NewFactory(chains.DefaultRegistry())

	for _, chain := range []chains.Type{chains.Ethereum, chains.Solana} {
		adapter, privateKey, err := f.GenerateEphemeral(chain)
		require.NoError(t, err, chain)
		require.NotEmpty(t, privateKey)

		// The exported key reconstructs the same identity.
		require.NoError(t, adapter.Connect(context.Background()))
		addr, err := adapter.Address()
		require.NoError(t, err)

		rebuilt, err := f.CreateLocal(privateKey, chain)
		require.NoError(t, err)
		require.NoError(t, rebuilt.Connect(context.Background()))
		rebuiltAddr, err := rebuilt.Address()
		require.NoError(t, err)
		assert.Equal(t, addr, rebuiltAddr, chain)
	}

	_, _, err := f.GenerateEphemeral(chains.Type("ripple"))
	assert.ErrorIs(t, err, chains.ErrUnsupportedChain)
}

func TestGenerateEphemeralThroughVault(t *testing.T) {
	f := NewFactory(chains.DefaultRegistry())
	v := vault.New()
	defer v.Stop()

	_, privateKey, err := f.GenerateEphemeral(chains.Ethereum)
	require.NoError(t, err)

	// The raw key goes into the vault, not into long-lived state.
	tok := v.Store([]byte(privateKey), time.Minute)

	recovered, ok := v.Retrieve(tok)
	require.True(t, ok)

	a, err := f.CreateLocal(string(recovered), chains.Ethereum)
	require.NoError(t, err)
	require.NoError(t, a.Connect(context.Background()))

	// And it is gone after the single retrieval.
	_, ok = v.Retrieve(tok)
	assert.False(t, ok)
}

// fakeProvider stands in for a browser-extension signing context.
type fakeProvider struct {
	chain    chains.Type
	accounts []string
	err      error
	signed   string
}

func (p *fakeProvider) ChainType() chains.Type { return p.chain }

func (p *fakeProvider) RequestAccounts(ctx context.Context) ([]string, error) {
	return p.accounts, p.err
}

func (p *fakeProvider) SignMessage(ctx context.Context, address string, message []byte) (string, error) {
	return p.signed, p.err
}

func (p *fakeProvider) SignTransaction(ctx context.Context, address string, tx *chains.TxRequest) (*chains.SignedTx, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &chains.SignedTx{Raw: p.signed, Hash: "0xhash"}, nil
}

func TestInjectedAdapter(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{
		chain:    chains.Ethereum,
		accounts: []string{"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"},
		signed:   "0xsigned",
	}

	f := NewFactory(chains.DefaultRegistry())
	f.RegisterProvider(provider)

	a, err := f.CreateInjected(chains.Ethereum)
	require.NoError(t, err)

	_, err = a.Address()
	assert.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, a.Connect(ctx))
	addr, err := a.Address()
	require.NoError(t, err)
	assert.Equal(t, provider.accounts[0], addr)

	sig, err := a.SignMessage(ctx, []byte("m"))
	require.NoError(t, err)
	assert.Equal(t, "0xsigned", sig)

	require.NoError(t, a.Disconnect())
	_, err = a.SignMessage(ctx, []byte("m"))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestInjectedAdapterConnectFailures(t *testing.T) {
	ctx := context.Background()

	a := NewInjectedAdapter(&fakeProvider{chain: chains.Ethereum, err: errors.New("denied")})
	assert.Error(t, a.Connect(ctx))
	assert.False(t, a.Connected())

	a = NewInjectedAdapter(&fakeProvider{chain: chains.Ethereum})
	assert.Error(t, a.Connect(ctx)) // no accounts granted
}

func TestCreateInjectedWithoutProvider(t *testing.T) {
	f := NewFactory(chains.DefaultRegistry())
	_, err := f.CreateInjected(chains.Solana)
	assert.ErrorIs(t, err, ErrNoProvider)
}

// fakeEthClient fakes the network for submit-and-confirm.
type fakeEthClient struct {
	nonce       uint64
	gasPrice    *big.Int
	networkID   *big.Int
	sendErr     error
	receipt     *types.Receipt
	receiptErrs int // polls that fail before the receipt appears
	sent        *types.Transaction
}

func (c *fakeEthClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return c.nonce, nil
}

func (c *fakeEthClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return c.gasPrice, nil
}

func (c *fakeEthClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	c.sent = tx
	return c.sendErr
}

func (c *fakeEthClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if c.receiptErrs > 0 {
		c.receiptErrs--
		return nil, errors.New("not found")
	}
	return c.receipt, nil
}

func (c *fakeEthClient) NetworkID(ctx context.Context) (*big.Int, error) {
	return c.networkID, nil
}

func (c *fakeEthClient) Close() {}

func TestSubmitAndConfirm(t *testing.T) {
	oldInterval := confirmPollInterval
	confirmPollInterval = 5 * time.Millisecond
	defer func() { confirmPollInterval = oldInterval }()

	client := &fakeEthClient{
		nonce:     3,
		gasPrice:  big.NewInt(1_000_000_000),
		networkID: big.NewInt(1),
		receipt: &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			BlockNumber: big.NewInt(123),
			GasUsed:     21000,
		},
		receiptErrs: 2, // mined on the third poll
	}

	a := newLocalEVM(t, WithClient(client))
	ctx := context.Background()
	require.NoError(t, a.Connect(ctx))

	receipt, err := a.SubmitAndConfirm(ctx, &chains.TxRequest{
		To:    "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		Value: big.NewInt(1000),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(123), receipt.BlockNumber)
	assert.Equal(t, uint64(21000), receipt.GasUsed)
	require.NotNil(t, client.sent)
	assert.Equal(t, uint64(3), client.sent.Nonce())
}

func TestSubmitAndConfirmRevertedTx(t *testing.T) {
	oldInterval := confirmPollInterval
	confirmPollInterval = 5 * time.Millisecond
	defer func() { confirmPollInterval = oldInterval }()

	client := &fakeEthClient{
		gasPrice:  big.NewInt(1),
		networkID: big.NewInt(1),
		receipt: &types.Receipt{
			Status:      types.ReceiptStatusFailed,
			BlockNumber: big.NewInt(5),
		},
	}

	a := newLocalEVM(t, WithClient(client))
	ctx := context.Background()
	require.NoError(t, a.Connect(ctx))

	_, err := a.SubmitAndConfirm(ctx, &chains.TxRequest{
		To: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	})
	assert.ErrorIs(t, err, ErrTxFailed)

	var submitErr *SubmitError
	require.ErrorAs(t, err, &submitErr)
	assert.Equal(t, "confirm", submitErr.Op)
	assert.NotEmpty(t, submitErr.TxHash)
}

func TestSubmitAndConfirmNetworkError(t *testing.T) {
	client := &fakeEthClient{
		gasPrice:  big.NewInt(1),
		networkID: big.NewInt(1),
		sendErr:   errors.New("connection refused"),
	}

	a := newLocalEVM(t, WithClient(client))
	ctx := context.Background()
	require.NoError(t, a.Connect(ctx))

	_, err := a.SubmitAndConfirm(ctx, &chains.TxRequest{
		To: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	})
	// Distinguishable from a signature or policy failure.
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestSubmitAndConfirmTimeout(t *testing.T) {
	oldInterval := confirmPollInterval
	confirmPollInterval = 5 * time.Millisecond
	defer func() { confirmPollInterval = oldInterval }()

	client := &fakeEthClient{
		gasPrice:    big.NewInt(1),
		networkID:   big.NewInt(1),
		receiptErrs: 1 << 30, // never mined
	}

	a := newLocalEVM(t, WithClient(client))
	require.NoError(t, a.Connect(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := a.SubmitAndConfirm(ctx, &chains.TxRequest{
		To: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestSubmitAndConfirmConfigErrors(t *testing.T) {
	ctx := context.Background()

	// No endpoint and no injected client is a configuration error.
	a := newLocalEVM(t)
	require.NoError(t, a.Connect(ctx))
	_, err := a.SubmitAndConfirm(ctx, &chains.TxRequest{
		To: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	})
	assert.ErrorIs(t, err, ErrNoEndpoint)

	// Solana has no submit path in this build.
	kp, err := chains.SolanaChain{}.GenerateKey()
	require.NoError(t, err)
	sol, err := NewLocalAdapter(kp.Export(), chains.Solana, chains.DefaultRegistry())
	require.NoError(t, err)
	require.NoError(t, sol.Connect(ctx))
	_, err = sol.SubmitAndConfirm(ctx, &chains.TxRequest{To: kp.Address()})
	assert.ErrorIs(t, err, ErrSubmitUnsupported)

	// Disconnected is a usage error, checked first.
	require.NoError(t, a.Disconnect())
	_, err = a.SubmitAndConfirm(ctx, &chains.TxRequest{})
	assert.ErrorIs(t, err, ErrNotConnected)
}
