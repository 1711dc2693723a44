// Package risk implements the security checks run against addresses,
// transactions, signatures, and URLs before the platform acts on them.
// Every check returns a CheckResult value; expected failures are verdicts,
// never errors.
package risk

import (
	"encoding/json"
	"fmt"
)

// Level classifies the severity of a check outcome. Levels are ordered;
// there is no arithmetic beyond comparison.
type Level int

const (
	LevelNone Level = iota
	LevelLow
	LevelMedium
	LevelHigh
	LevelCritical
)

var levelNames = [...]string{"none", "low", "medium", "high", "critical"}

func (l Level) String() string {
	if l < LevelNone || l > LevelCritical {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// MarshalJSON encodes the level as its name.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes a level name.
func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for i, name := range levelNames {
		if name == s {
			*l = Level(i)
			return nil
		}
	}
	return fmt.Errorf("risk: unknown level %q", s)
}

// CheckKind identifies which check produced a result.
type CheckKind string

const (
	CheckAddress     CheckKind = "address"
	CheckTransaction CheckKind = "transaction"
	CheckSignature   CheckKind = "signature"
	CheckPhishing    CheckKind = "phishing"
	CheckContract    CheckKind = "contract"
	CheckRateLimit   CheckKind = "rate_limit"
)

// CheckResult is the outcome of a single security check, serialized as-is
// to callers.
type CheckResult struct {
	Success bool           `json:"success"`
	Kind    CheckKind      `json:"checkKind"`
	Level   Level          `json:"riskLevel"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Pass builds a successful result.
func Pass(kind CheckKind, level Level, message string) CheckResult {
	return CheckResult{Success: true, Kind: kind, Level: level, Message: message}
}

// Fail builds a failed result.
func Fail(kind CheckKind, level Level, message string) CheckResult {
	return CheckResult{Success: false, Kind: kind, Level: level, Message: message}
}

// WithDetails attaches structured detail to a result.
func (r CheckResult) WithDetails(details map[string]any) CheckResult {
	r.Details = details
	return r
}
