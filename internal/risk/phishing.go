package risk

import (
	"fmt"
	"net/url"
	"strings"
)

// brandDomains maps brand tokens to the canonical domain suffixes that a
// legitimate host must end with. A host containing the token without one
// of the suffixes is treated as impersonation.
var brandDomains = map[string][]string{
	"metamask": {"metamask.io"},
	"phantom":  {"phantom.app", "phantom.com"},
	"coinbase": {"coinbase.com"},
	"binance":  {"binance.com", "binance.us"},
	"opensea":  {"opensea.io"},
	"uniswap":  {"uniswap.org"},
	"ledger":   {"ledger.com"},
	"trezor":   {"trezor.io"},
}

// sensitiveKeywords are terms common in wallet-drainer lures. Each match
// contributes one point to the phishing score.
var sensitiveKeywords = []string{
	"wallet", "connect", "verify", "claim", "airdrop", "giveaway", "free", "bonus",
}

// PhishingQuery carries the optional inputs to DetectPhishing. Any subset
// may be set.
type PhishingQuery struct {
	URL             string
	Address         string
	ContractAddress string
}

// DetectPhishing checks a URL against the phishing-domain set and two
// heuristics (brand impersonation and sensitive keywords), and checks any
// given addresses against the blacklist. A blacklisted address is critical
// regardless of the URL verdict.
func (e *Engine) DetectPhishing(q PhishingQuery) (res CheckResult) {
	defer e.finish(CheckPhishing, &res)

	if q.Address != "" && e.blacklist.Contains(q.Address) {
		return Fail(CheckPhishing, LevelCritical, "address is blacklisted")
	}
	if q.ContractAddress != "" && e.blacklist.Contains(q.ContractAddress) {
		return Fail(CheckPhishing, LevelCritical, "contract address is blacklisted")
	}

	if q.URL == "" {
		return Pass(CheckPhishing, LevelNone, "no phishing indicators")
	}

	u, err := url.Parse(q.URL)
	if err != nil || u.Hostname() == "" {
		return Fail(CheckPhishing, LevelMedium, fmt.Sprintf("could not parse URL %q", q.URL))
	}
	host := strings.ToLower(u.Hostname())

	if e.phishing.Contains(host) {
		return Fail(CheckPhishing, LevelCritical, fmt.Sprintf("domain %s is a known phishing site", host))
	}

	var indicators []string
	for brand, suffixes := range brandDomains {
		if strings.Contains(host, brand) && !hasCanonicalSuffix(host, suffixes) {
			indicators = append(indicators, "impersonates "+brand)
			break
		}
	}
	lowered := strings.ToLower(q.URL)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lowered, kw) {
			indicators = append(indicators, "keyword "+kw)
		}
	}

	score := len(indicators)
	details := map[string]any{"score": score, "indicators": indicators}
	switch {
	case score == 0:
		return Pass(CheckPhishing, LevelNone, "no phishing indicators").WithDetails(details)
	case score <= 2:
		return Fail(CheckPhishing, LevelMedium,
			fmt.Sprintf("%d phishing indicator(s) detected", score)).WithDetails(details)
	default:
		return Fail(CheckPhishing, LevelHigh,
			fmt.Sprintf("%d phishing indicators detected", score)).WithDetails(details)
	}
}

// hasCanonicalSuffix reports whether host is the canonical domain itself
// or a subdomain of it.
func hasCanonicalSuffix(host string, suffixes []string) bool {
	for _, s := range suffixes {
		if host == s || strings.HasSuffix(host, "."+s) {
			return true
		}
	}
	return false
}
