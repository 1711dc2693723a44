// Package token implements the stateless signed bearer token issued after
// a successful security check and validated on subsequent calls. Tokens
// carry their own expiry; there is no server-side session state.
//
// Wire format: base64url(payload-json) + "." + hex(hmac-sha256), where the
// payload is {"data": ..., "exp": epoch-ms}. The MAC covers the serialized
// payload, binding data and expiry together: neither can be altered
// independently.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mbd888/walletguard/internal/metrics"
)

var (
	// ErrNoSecret is returned when constructing a codec without a signing
	// secret. There is deliberately no fallback secret: an unconfigured
	// deployment must fail closed, not sign with a known key.
	ErrNoSecret = errors.New("token: signing secret required")

	ErrMalformed    = errors.New("token: malformed")
	ErrExpired      = errors.New("token: expired")
	ErrBadSignature = errors.New("token: bad signature")
)

type payload struct {
	Data any   `json:"data"`
	Exp  int64 `json:"exp"` // epoch milliseconds
}

// Claims is the verified content of a token.
type Claims struct {
	Data      any
	ExpiresAt time.Time
}

// Codec signs and verifies tokens with a process-lifetime secret. It has
// no mutable state and is safe for concurrent use.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec creates a codec. The secret must be non-empty.
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	return &Codec{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}, nil
}

func (c *Codec) mac(serialized []byte) []byte {
	h := hmac.New(sha256.New, c.secret)
	h.Write(serialized)
	return h.Sum(nil)
}

// Issue creates a token over data that expires after ttl.
func (c *Codec) Issue(data any, ttl time.Duration) (string, error) {
	raw, err := json.Marshal(payload{
		Data: data,
		Exp:  c.now().Add(ttl).UnixMilli(),
	})
	if err != nil {
		metrics.TokenOps.WithLabelValues("issue", "error").Inc()
		return "", fmt.Errorf("token: serialize payload: %w", err)
	}
	metrics.TokenOps.WithLabelValues("issue", "ok").Inc()
	return base64.RawURLEncoding.EncodeToString(raw) + "." + hex.EncodeToString(c.mac(raw)), nil
}

// Verify checks a token and returns its claims. The split is on the last
// dot: base64url cannot contain one, so two non-empty parts are exactly
// the payload and the MAC.
func (c *Codec) Verify(tok string) (*Claims, error) {
	claims, err := c.verify(tok)
	if err != nil {
		reason := "malformed"
		switch {
		case errors.Is(err, ErrExpired):
			reason = "expired"
		case errors.Is(err, ErrBadSignature):
			reason = "bad_signature"
		}
		metrics.TokenOps.WithLabelValues("verify", reason).Inc()
		return nil, err
	}
	metrics.TokenOps.WithLabelValues("verify", "ok").Inc()
	return claims, nil
}

func (c *Codec) verify(tok string) (*Claims, error) {
	i := strings.LastIndex(tok, ".")
	if i <= 0 || i == len(tok)-1 {
		return nil, fmt.Errorf("%w: expected two dot-separated parts", ErrMalformed)
	}
	raw, err := base64.RawURLEncoding.DecodeString(tok[:i])
	if err != nil {
		return nil, fmt.Errorf("%w: payload is not base64url", ErrMalformed)
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: payload is not valid JSON", ErrMalformed)
	}
	if c.now().UnixMilli() > p.Exp {
		return nil, ErrExpired
	}
	sig, err := hex.DecodeString(tok[i+1:])
	if err != nil {
		return nil, fmt.Errorf("%w: signature is not hex", ErrMalformed)
	}
	if !hmac.Equal(c.mac(raw), sig) {
		return nil, ErrBadSignature
	}
	return &Claims{Data: p.Data, ExpiresAt: time.UnixMilli(p.Exp)}, nil
}
