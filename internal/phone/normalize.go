package phone

import (
	"fmt"
	"strings"
)

type Policy string

const (
	PrefixPlus                   Policy = "prefix-plus"
	PrefixPlusWithDefaultCountry Policy = "prefix-plus-with-default-country-code"
	StripPlus                    Policy = "strip-plus"
)

// Normalizer canonicalizes raw spreadsheet phone strings. One policy per deployment.
type Normalizer struct {
	policy      Policy
	countryCode string
}

func NewNormalizer(policy Policy, defaultCountryCode string) (*Normalizer, error) {
	cc := strings.TrimPrefix(strings.TrimSpace(defaultCountryCode), "+")

	switch policy {
	case PrefixPlus, StripPlus:
	case PrefixPlusWithDefaultCountry:
		if cc == "" || digitsOnly(cc) != cc {
			return nil, fmt.Errorf("policy %s requires a numeric default country code, got %q", policy, defaultCountryCode)
		}
	default:
		return nil, fmt.Errorf("unknown phone policy %q", policy)
	}

	return &Normalizer{policy: policy, countryCode: cc}, nil
}

func (n *Normalizer) Policy() Policy {
	return n.policy
}

func (n *Normalizer) Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	hasPlus := strings.HasPrefix(raw, "+")
	digits := digitsOnly(raw)
	if digits == "" {
		return ""
	}

	switch n.policy {
	case PrefixPlus:
		return "+" + digits
	case PrefixPlusWithDefaultCountry:
		if hasPlus {
			return "+" + digits
		}
		return "+" + n.countryCode + digits
	case StripPlus:
		return digits
	}
	return raw
}

// digitsOnly drops formatting noise such as spaces, dashes, dots and parentheses.
func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
