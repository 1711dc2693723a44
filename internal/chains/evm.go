package chains

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrInvalidEVMAddress = errors.New("chains: invalid EVM address")
	ErrBadChecksum       = errors.New("chains: address checksum mismatch")
	ErrInvalidSignature  = errors.New("chains: invalid signature")
	ErrSignerMismatch    = errors.New("chains: recovered signer does not match address")
	ErrInvalidPrivateKey = errors.New("chains: invalid private key")
	ErrMissingChainID    = errors.New("chains: chain ID required for EVM transaction signing")
)

var evmAddressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// EVM implements the capability contract for the secp256k1/hex-address
// family (ethereum, polygon, bsc). Signatures use the EIP-191 personal
// message scheme with signer recovery.
type EVM struct{}

var _ Capabilities = (*EVM)(nil)

// ValidateAddress checks the 0x-prefixed 20-byte hex form and, for
// mixed-case input, the EIP-55 checksum.
func (EVM) ValidateAddress(address string) error {
	if !evmAddressRegex.MatchString(address) {
		return fmt.Errorf("%w: must be 0x followed by 40 hex characters", ErrInvalidEVMAddress)
	}
	hexPart := address[2:]
	hasUpper := strings.ContainsAny(hexPart, "ABCDEF")
	hasLower := strings.ContainsAny(hexPart, "abcdef")
	if hasUpper && hasLower {
		// Mixed case carries an EIP-55 checksum which must be exact.
		if common.HexToAddress(address).Hex() != address {
			return ErrBadChecksum
		}
	}
	return nil
}

// hashPersonalMessage applies the EIP-191 prefix before hashing, matching
// what wallet extensions sign with personal_sign.
func hashPersonalMessage(message []byte) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(message))
	return crypto.Keccak256(append([]byte(prefix), message...))
}

// VerifySignature recovers the signer from the 65-byte signature and
// compares it case-insensitively to the claimed address.
func (e EVM) VerifySignature(message []byte, signature, publicKeyOrAddress string) error {
	if err := e.ValidateAddress(publicKeyOrAddress); err != nil {
		return err
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return fmt.Errorf("%w: not hex: %v", ErrInvalidSignature, err)
	}
	if len(sig) != 65 {
		return fmt.Errorf("%w: must be 65 bytes, got %d", ErrInvalidSignature, len(sig))
	}
	// Normalize v from 27/28 to the 0/1 Ecrecover expects. Copy first so
	// the caller's string-backed bytes are untouched.
	sig = append([]byte(nil), sig...)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pubKeyBytes, err := crypto.Ecrecover(hashPersonalMessage(message), sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	pubKey, err := crypto.UnmarshalPubkey(pubKeyBytes)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	recovered := crypto.PubkeyToAddress(*pubKey).Hex()
	if !strings.EqualFold(recovered, publicKeyOrAddress) {
		return fmt.Errorf("%w: expected %s, recovered %s", ErrSignerMismatch, publicKeyOrAddress, recovered)
	}
	return nil
}

// ParseKey accepts a hex-encoded secp256k1 private key, with or without
// the 0x prefix.
func (EVM) ParseKey(privateKey string) (Keypair, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return &evmKeypair{key: key}, nil
}

// GenerateKey creates a fresh secp256k1 keypair.
func (EVM) GenerateKey() (Keypair, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &evmKeypair{key: key}, nil
}

type evmKeypair struct {
	key *ecdsa.PrivateKey
}

func (k *evmKeypair) Address() string {
	return crypto.PubkeyToAddress(k.key.PublicKey).Hex()
}

func (k *evmKeypair) Export() string {
	return hex.EncodeToString(crypto.FromECDSA(k.key))
}

// SignMessage produces a personal_sign-compatible signature with v in
// {27, 28}, hex encoded with a 0x prefix.
func (k *evmKeypair) SignMessage(message []byte) (string, error) {
	sig, err := crypto.Sign(hashPersonalMessage(message), k.key)
	if err != nil {
		return "", err
	}
	sig[64] += 27
	return hexutil.Encode(sig), nil
}

// SignTransaction signs a legacy transaction with the EIP-155 signer.
// The request must carry a chain ID; replay-protected signing has no
// sensible default.
func (k *evmKeypair) SignTransaction(tx *TxRequest) (*SignedTx, error) {
	if tx.ChainID == nil || tx.ChainID.Sign() <= 0 {
		return nil, ErrMissingChainID
	}
	if !evmAddressRegex.MatchString(tx.To) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEVMAddress, tx.To)
	}
	value := tx.Value
	if value == nil {
		value = new(big.Int)
	}
	gasPrice := tx.GasPrice
	if gasPrice == nil {
		gasPrice = new(big.Int)
	}
	gasLimit := tx.GasLimit
	if gasLimit == 0 {
		gasLimit = 21000
	}
	unsigned := types.NewTransaction(tx.Nonce, common.HexToAddress(tx.To), value, gasLimit, gasPrice, tx.Data)
	signed, err := types.SignTx(unsigned, types.NewEIP155Signer(tx.ChainID), k.key)
	if err != nil {
		return nil, err
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return &SignedTx{Raw: hexutil.Encode(raw), Hash: signed.Hash().Hex()}, nil
}
