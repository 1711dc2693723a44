package risk

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mbd888/walletguard/internal/chains"
	"github.com/mbd888/walletguard/internal/denylist"
	"github.com/mbd888/walletguard/internal/logging"
	"github.com/mbd888/walletguard/internal/metrics"
)

// Engine runs the platform's security checks. It is stateless apart from
// the injected denylist sets and chain registry, so a single instance is
// safe for concurrent use by request workers.
type Engine struct {
	blacklist *denylist.Set
	phishing  *denylist.Set
	registry  *chains.Registry
	logger    *slog.Logger
}

// NewEngine creates an engine over the given denylist sets and chain
// registry.
func NewEngine(blacklist, phishing *denylist.Set, registry *chains.Registry) *Engine {
	return &Engine{
		blacklist: blacklist,
		phishing:  phishing,
		registry:  registry,
		logger:    logging.Nop(),
	}
}

// WithLogger sets the engine's logger.
func (e *Engine) WithLogger(l *slog.Logger) *Engine {
	e.logger = l
	return e
}

// finish converts a panic into a medium-risk verdict and records the
// outcome. Checks are total functions over untrusted input; nothing may
// escape them as a panic.
func (e *Engine) finish(kind CheckKind, res *CheckResult) {
	if r := recover(); r != nil {
		e.logger.Warn("check panicked", "kind", string(kind), "panic", fmt.Sprint(r))
		*res = Fail(kind, LevelMedium, fmt.Sprintf("internal error during %s check", kind))
	}
	outcome := "fail"
	if res.Success {
		outcome = "pass"
	}
	metrics.ChecksTotal.WithLabelValues(string(kind), res.Level.String(), outcome).Inc()
}

// TxPolicy constrains ValidateTransaction beyond address validity.
type TxPolicy struct {
	// AllowedChains restricts which chains the transaction may target.
	// Empty means any registered chain.
	AllowedChains []chains.Type
	// AllowedRecipients, when non-empty, is an allow list for the
	// recipient address (case-insensitive).
	AllowedRecipients []string
	// MaxAmount is a decimal-string ceiling for the amount. Empty means
	// no ceiling.
	MaxAmount string
}

func chainAllowed(chain chains.Type, allowed []chains.Type) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, c := range allowed {
		if c == chain {
			return true
		}
	}
	return false
}

// ValidateAddress checks an address against the chain allow list, the
// blacklist, and the chain's syntactic rules.
func (e *Engine) ValidateAddress(address string, chain chains.Type, allowedChains []chains.Type) (res CheckResult) {
	defer e.finish(CheckAddress, &res)

	if !chainAllowed(chain, allowedChains) {
		return Fail(CheckAddress, LevelHigh, fmt.Sprintf("chain %q is not allowed for this operation", chain))
	}
	if e.blacklist.Contains(address) {
		return Fail(CheckAddress, LevelCritical, "address is blacklisted")
	}
	caps, err := e.registry.Get(chain)
	if err != nil {
		return Fail(CheckAddress, LevelMedium, fmt.Sprintf("unsupported chain %q", chain))
	}
	if err := caps.ValidateAddress(address); err != nil {
		return Fail(CheckAddress, LevelHigh, fmt.Sprintf("invalid address for %s: %v", chain, err))
	}
	return Pass(CheckAddress, LevelNone, "address format is valid")
}

// ValidateTransaction validates both endpoints of a transfer and applies
// the recipient allow list and amount ceiling. Amounts are decimal
// strings and compared exactly; they are never run through binary floats.
func (e *Engine) ValidateTransaction(from, to, amount string, chain chains.Type, policy TxPolicy) (res CheckResult) {
	defer e.finish(CheckTransaction, &res)

	if fromRes := e.ValidateAddress(from, chain, policy.AllowedChains); !fromRes.Success {
		return Fail(CheckTransaction, fromRes.Level, fmt.Sprintf("sender rejected: %s", fromRes.Message))
	}
	if toRes := e.ValidateAddress(to, chain, policy.AllowedChains); !toRes.Success {
		return Fail(CheckTransaction, toRes.Level, fmt.Sprintf("recipient rejected: %s", toRes.Message))
	}

	if len(policy.AllowedRecipients) > 0 {
		allowed := false
		for _, r := range policy.AllowedRecipients {
			if strings.EqualFold(r, to) {
				allowed = true
				break
			}
		}
		if !allowed {
			return Fail(CheckTransaction, LevelHigh, "recipient is not in the allow list")
		}
	}

	if policy.MaxAmount != "" {
		amt, err := decimal.NewFromString(amount)
		if err != nil {
			return Fail(CheckTransaction, LevelLow, fmt.Sprintf("invalid amount %q", amount))
		}
		ceiling, err := decimal.NewFromString(policy.MaxAmount)
		if err != nil {
			return Fail(CheckTransaction, LevelLow, fmt.Sprintf("invalid maximum amount %q", policy.MaxAmount))
		}
		if amt.GreaterThan(ceiling) {
			return Fail(CheckTransaction, LevelMedium,
				fmt.Sprintf("amount %s exceeds the maximum allowed %s", amt.String(), ceiling.String()),
			).WithDetails(map[string]any{
				"amount":    amt.String(),
				"maxAmount": ceiling.String(),
			})
		}
	}

	return Pass(CheckTransaction, LevelNone, "transaction passed policy checks")
}

// VerifySignature runs chain-specific signature verification: signer
// recovery for the EVM family, direct ed25519 verification for solana.
func (e *Engine) VerifySignature(message, signature, publicKeyOrAddress string, chain chains.Type) (res CheckResult) {
	defer e.finish(CheckSignature, &res)

	caps, err := e.registry.Get(chain)
	if err != nil {
		return Fail(CheckSignature, LevelMedium, fmt.Sprintf("unsupported chain %q", chain))
	}
	if err := caps.VerifySignature([]byte(message), signature, publicKeyOrAddress); err != nil {
		return Fail(CheckSignature, LevelHigh, fmt.Sprintf("signature verification failed: %v", err))
	}
	return Pass(CheckSignature, LevelNone, "signature is valid")
}

// AssessContractRisk is a denylist check only. Static and historical
// contract analysis is provided by an external service and is not
// reimplemented here.
func (e *Engine) AssessContractRisk(contractAddress string, chain chains.Type) (res CheckResult) {
	defer e.finish(CheckContract, &res)

	if e.blacklist.Contains(contractAddress) {
		return Fail(CheckContract, LevelCritical, "contract address is blacklisted")
	}
	return Pass(CheckContract, LevelLow,
		"no denylist match; static and historical analysis not performed",
	).WithDetails(map[string]any{"analysis": "denylist-only"})
}
