// Package classify identifies the issuing bank and currency of a statement
// from the text of its first pages.
package classify

import (
	"regexp"
	"strings"

	"github.com/dvloznov/statement-pipeline/internal/domain"
)

// PrefixPages is how many leading pages are inspected.
const PrefixPages = 2

// Signature identifies one bank. Signatures are tried in list order and the
// first match wins.
type Signature struct {
	Bank            string
	Country         string
	DefaultCurrency string
	Markers         []*regexp.Regexp
}

type currencyMarker struct {
	code    string
	pattern *regexp.Regexp
}

// Currency markers in priority order.
var currencyMarkers = []currencyMarker{
	{"NGN", regexp.MustCompile(`\bngn\b|₦|\bnaira\b`)},
	{"USD", regexp.MustCompile(`\busd\b|\$`)},
	{"EUR", regexp.MustCompile(`\beur\b|€`)},
	{"GBP", regexp.MustCompile(`\bgbp\b|£`)},
	{"INR", regexp.MustCompile(`\binr\b|₹`)},
	{"CAD", regexp.MustCompile(`\bcad\b`)},
}

var anchorPatterns = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"account_number", regexp.MustCompile(`account\s*(?:no\.?|number|#)`)},
	{"iban", regexp.MustCompile(`\biban\b`)},
	{"sort_code", regexp.MustCompile(`sort\s*code`)},
	{"bvn", regexp.MustCompile(`\bbvn\b`)},
	{"routing_number", regexp.MustCompile(`routing\s*(?:no\.?|number)`)},
}

// Lines containing one of these are where a currency marker is most trustworthy.
var headerRegion = regexp.MustCompile(`opening\s*balance|brought\s*forward|account|currency|statement\s*period`)

func ng(bank string, markers ...string) Signature {
	sig := Signature{Bank: bank, Country: "NG", DefaultCurrency: "NGN"}
	for _, m := range markers {
		sig.Markers = append(sig.Markers, regexp.MustCompile(m))
	}
	return sig
}

// DefaultSignatures is the built-in bank list in priority order.
var DefaultSignatures = []Signature{
	ng("ACCESS_BANK", `\baccess\s+bank\b`),
	ng("GTBANK", `\bgtbank\b`, `\bguaranty\s+trust\b`, `\bgtco\b`),
	ng("ZENITH", `\bzenith\s+bank\b`),
	ng("FIRST_BANK", `\bfirst\s*bank\b`),
	ng("UBA", `\bunited\s+bank\s+for\s+africa\b`, `\buba\b`),
	ng("POLARIS", `\bpolaris\s+bank\b`),
	ng("UNION_BANK", `\bunion\s+bank\b`),
	ng("STERLING", `\bsterling\s+bank\b`),
	ng("FIDELITY", `\bfidelity\s+bank\b`),
	ng("ECOBANK", `\becobank\b`),
	ng("KEYSTONE", `\bkeystone\s+bank\b`),
	ng("FCMB", `\bfcmb\b`, `\bfirst\s+city\s+monument\b`),
	ng("STANBIC_IBTC", `\bstanbic\s+ibtc\b`),
	ng("OPAY", `\bopay\b`),
}

// Classifier matches bank signatures and currency markers.
type Classifier struct {
	signatures []Signature
}

// New creates a Classifier over the given signatures.
func New(signatures []Signature) *Classifier {
	return &Classifier{signatures: signatures}
}

// Default returns a Classifier over DefaultSignatures.
func Default() *Classifier {
	return New(DefaultSignatures)
}

// Classify is a pure function of the first PrefixPages pages. Bank is
// domain.BankGeneric when nothing matches; Currency may be empty when neither
// a marker nor a bank default is available.
func (c *Classifier) Classify(pages []domain.RawPage) (domain.Classification, []domain.Warning) {
	text := prefixText(pages)
	out := domain.Classification{Bank: domain.BankGeneric}
	var warnings []domain.Warning

	var sig *Signature
	for i := range c.signatures {
		if matchesAny(text, c.signatures[i].Markers) {
			sig = &c.signatures[i]
			break
		}
	}
	if sig != nil {
		out.Bank = sig.Bank
		out.Country = sig.Country
	}

	for _, a := range anchorPatterns {
		if a.pattern.MatchString(text) {
			out.Anchors = append(out.Anchors, a.name)
		}
	}

	out.Currencies = currenciesIn(text)
	switch {
	case len(out.Currencies) == 0:
		if sig != nil {
			out.Currency = sig.DefaultCurrency
		}
	default:
		if region := currenciesIn(regionText(text)); len(region) > 0 {
			out.Currency = region[0]
		} else {
			out.Currency = out.Currencies[0]
		}
	}

	if len(out.Currencies) > 1 {
		warnings = append(warnings, domain.NewWarning(domain.WarnMultiCurrency,
			"found currency markers %s, using %s; multi-currency statements are not supported",
			strings.Join(out.Currencies, ","), out.Currency))
	}

	return out, warnings
}

func prefixText(pages []domain.RawPage) string {
	var b strings.Builder
	for i, p := range pages {
		if i >= PrefixPages {
			break
		}
		b.WriteString(p.Text)
		b.WriteByte('\n')
	}
	return strings.ToLower(b.String())
}

// regionText returns the header-like lines of text.
func regionText(text string) string {
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if headerRegion.MatchString(line) {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// currenciesIn returns the distinct currency codes marked in text, in priority order.
func currenciesIn(text string) []string {
	var out []string
	for _, m := range currencyMarkers {
		if m.pattern.MatchString(text) {
			out = append(out, m.code)
		}
	}
	return out
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
