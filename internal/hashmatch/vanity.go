package hashmatch

import (
	"regexp"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// VanityMatcher renders a hash160 in its base-58 checked address form and
// tests it against a configured regex. A nil matcher never matches, so
// callers can hold one unconditionally.
type VanityMatcher struct {
	pattern *regexp.Regexp
	params  *chaincfg.Params
}

// NewVanityMatcher compiles pattern for later matching against
// mainnet-encoded addresses. An empty pattern disables matching, but
// params is always set so Render can still encode a confirmed store
// hit's address even when no vanity pattern is configured.
func NewVanityMatcher(pattern string) (*VanityMatcher, error) {
	if pattern == "" {
		return &VanityMatcher{params: &chaincfg.MainNetParams}, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &VanityMatcher{pattern: re, params: &chaincfg.MainNetParams}, nil
}

// Enabled reports whether a pattern was configured. When false, Match
// never matches and callers on the hot path can skip calling it
// entirely rather than pay for a base-58 encode that can't matter.
func (m *VanityMatcher) Enabled() bool {
	return m != nil && m.pattern != nil
}

// Match renders hash160 as a base-58 P2PKH address and reports whether
// it satisfies the configured pattern, along with the rendered address
// for a hit to log. Callers should check Enabled first; Match itself
// still short-circuits without encoding anything if no pattern was
// configured.
func (m *VanityMatcher) Match(hash160 []byte) (address string, matched bool, err error) {
	if !m.Enabled() {
		return "", false, nil
	}
	addr, err := btcutil.NewAddressPubKeyHash(hash160, m.params)
	if err != nil {
		return "", false, err
	}
	address = addr.EncodeAddress()
	return address, m.pattern.MatchString(address), nil
}

// Render encodes hash160 as a base-58 P2PKH address unconditionally,
// regardless of whether a vanity pattern is configured. Callers use
// this once a hit is already confirmed (store lookup or vanity match)
// so every hit-sink line carries an address, not just vanity hits;
// it is not meant for the per-candidate hot path.
func (m *VanityMatcher) Render(hash160 []byte) (string, error) {
	addr, err := btcutil.NewAddressPubKeyHash(hash160, m.params)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}
