package chains

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/btcsuite/btcutil/base58"
)

var (
	ErrInvalidSolanaAddress = errors.New("chains: invalid solana address")
	ErrNotOnCurve           = errors.New("chains: address is not a valid curve point")
	ErrInvalidSolanaKey     = errors.New("chains: invalid solana private key")
)

// SolanaChain implements the capability contract for the ed25519 family.
// Addresses are base58-encoded 32-byte public keys; signatures are plain
// ed25519 over the raw message bytes, verified directly against the key.
type SolanaChain struct{}

var _ Capabilities = (*SolanaChain)(nil)

// decodeAddress base58-decodes an address and checks it is a canonical
// edwards25519 point.
func decodeAddress(address string) (ed25519.PublicKey, error) {
	raw := base58.Decode(address)
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: must decode to %d bytes", ErrInvalidSolanaAddress, ed25519.PublicKeySize)
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotOnCurve, err)
	}
	return ed25519.PublicKey(raw), nil
}

func (SolanaChain) ValidateAddress(address string) error {
	_, err := decodeAddress(address)
	return err
}

// VerifySignature verifies an ed25519 signature against the base58 public
// key. The signature may be base58 or hex encoded.
func (SolanaChain) VerifySignature(message []byte, signature, publicKeyOrAddress string) error {
	pub, err := decodeAddress(publicKeyOrAddress)
	if err != nil {
		return err
	}
	sig := decodeSignature(signature)
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("%w: must be %d bytes", ErrInvalidSignature, ed25519.SignatureSize)
	}
	if !ed25519.Verify(pub, message, sig) {
		return fmt.Errorf("%w: ed25519 verification failed", ErrInvalidSignature)
	}
	return nil
}

// decodeSignature accepts the base58 form wallets emit, or hex when
// prefixed with 0x.
func decodeSignature(signature string) []byte {
	if strings.HasPrefix(signature, "0x") {
		raw, err := hex.DecodeString(signature[2:])
		if err != nil {
			return nil
		}
		return raw
	}
	return base58.Decode(signature)
}

// ParseKey accepts a base58-encoded 64-byte expanded private key (the
// solana CLI convention) or a 32-byte seed.
func (SolanaChain) ParseKey(privateKey string) (Keypair, error) {
	raw := base58.Decode(strings.TrimSpace(privateKey))
	switch len(raw) {
	case ed25519.PrivateKeySize:
		return &solanaKeypair{key: ed25519.PrivateKey(raw)}, nil
	case ed25519.SeedSize:
		return &solanaKeypair{key: ed25519.NewKeyFromSeed(raw)}, nil
	}
	return nil, fmt.Errorf("%w: must decode to %d or %d bytes", ErrInvalidSolanaKey, ed25519.SeedSize, ed25519.PrivateKeySize)
}

func (SolanaChain) GenerateKey() (Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &solanaKeypair{key: priv}, nil
}

type solanaKeypair struct {
	key ed25519.PrivateKey
}

func (k *solanaKeypair) public() ed25519.PublicKey {
	return k.key.Public().(ed25519.PublicKey)
}

func (k *solanaKeypair) Address() string {
	return base58.Encode(k.public())
}

func (k *solanaKeypair) Export() string {
	return base58.Encode(k.key)
}

func (k *solanaKeypair) SignMessage(message []byte) (string, error) {
	return base58.Encode(ed25519.Sign(k.key, message)), nil
}

// SignTransaction signs a canonical transfer message. The transaction
// identifier is the base58 signature, matching how the chain names
// transactions by their first signature.
func (k *solanaKeypair) SignTransaction(tx *TxRequest) (*SignedTx, error) {
	if _, err := decodeAddress(tx.To); err != nil {
		return nil, err
	}
	value := "0"
	if tx.Value != nil {
		value = tx.Value.String()
	}
	msg := []byte(fmt.Sprintf("transfer|%s|%s|%s|%d", k.Address(), tx.To, value, tx.Nonce))
	sig := ed25519.Sign(k.key, msg)
	return &SignedTx{
		Raw:  base58.Encode(append(append([]byte(nil), sig...), msg...)),
		Hash: base58.Encode(sig),
	}, nil
}
