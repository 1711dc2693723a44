// Package vault is an in-memory, time-boxed, single-retrieval store for
// transient secret material, such as a freshly generated private key in
// flight between two process boundaries. A stored secret can be read at
// most once and never after its TTL, whichever comes first.
package vault

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mbd888/walletguard/internal/idgen"
	"github.com/mbd888/walletguard/internal/logging"
	"github.com/mbd888/walletguard/internal/metrics"
)

// DefaultSweepInterval is how often expired entries are wiped. Retrieve
// checks expiry itself, so the sweep only bounds how long expired bytes
// linger in memory.
const DefaultSweepInterval = 30 * time.Second

type entry struct {
	secret    []byte
	expiresAt time.Time
}

// Vault holds ephemeral secrets keyed by unguessable tokens.
type Vault struct {
	mu      sync.Mutex
	entries map[string]*entry
	stop    chan struct{}
	once    sync.Once
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Vault.
type Option func(*Vault)

// WithLogger sets the vault's logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Vault) { v.logger = l }
}

// New creates a vault and starts its expiry sweep.
func New(opts ...Option) *Vault {
	v := &Vault{
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
		logger:  logging.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	go v.sweep(DefaultSweepInterval)
	return v
}

// Store saves a copy of secret for at most ttl and returns the retrieval
// token. The caller may wipe its own copy immediately.
func (v *Vault) Store(secret []byte, ttl time.Duration) string {
	tok := idgen.WithPrefix("eph_")
	e := &entry{
		secret:    append([]byte(nil), secret...),
		expiresAt: v.now().Add(ttl),
	}

	v.mu.Lock()
	v.entries[tok] = e
	size := len(v.entries)
	v.mu.Unlock()

	metrics.VaultOps.WithLabelValues("store").Inc()
	metrics.VaultEntries.Set(float64(size))
	return tok
}

// Retrieve returns the secret for tok exactly once. The lookup, expiry
// check, and delete happen under one lock, so concurrent callers racing
// on the same token see at most one success.
func (v *Vault) Retrieve(tok string) ([]byte, bool) {
	v.mu.Lock()
	e, ok := v.entries[tok]
	if ok {
		delete(v.entries, tok)
	}
	size := len(v.entries)
	v.mu.Unlock()

	metrics.VaultEntries.Set(float64(size))
	if !ok {
		metrics.VaultOps.WithLabelValues("miss").Inc()
		return nil, false
	}
	if v.now().After(e.expiresAt) {
		wipe(e.secret)
		metrics.VaultOps.WithLabelValues("expire").Inc()
		return nil, false
	}
	metrics.VaultOps.WithLabelValues("retrieve").Inc()
	return e.secret, true
}

// Clear wipes and drops every entry, e.g. on shutdown.
func (v *Vault) Clear() {
	v.mu.Lock()
	for tok, e := range v.entries {
		wipe(e.secret)
		delete(v.entries, tok)
	}
	v.mu.Unlock()
	metrics.VaultEntries.Set(0)
}

// Len returns the number of live entries.
func (v *Vault) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.entries)
}

// Stop terminates the sweep goroutine. It does not clear entries.
func (v *Vault) Stop() {
	v.once.Do(func() { close(v.stop) })
}

// sweep wipes entries that are present and expired. It never touches an
// entry a concurrent Retrieve already took, since both run under the lock.
func (v *Vault) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := v.now()
			v.mu.Lock()
			expired := 0
			for tok, e := range v.entries {
				if now.After(e.expiresAt) {
					wipe(e.secret)
					delete(v.entries, tok)
					expired++
				}
			}
			size := len(v.entries)
			v.mu.Unlock()
			if expired > 0 {
				v.logger.Debug("swept expired secrets", "count", expired)
				metrics.VaultOps.WithLabelValues("expire").Add(float64(expired))
				metrics.VaultEntries.Set(float64(size))
			}
		case <-v.stop:
			return
		}
	}
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
