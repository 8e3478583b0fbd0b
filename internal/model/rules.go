package model

import (
	"context"
	"regexp"
	"strings"

	"github.com/veil-waf/phishdash/internal/netguard"
)

// Raw labels emitted by RulesPredictor.
var (
	RulesBenign    = Int(0)
	RulesMalicious = Int(1)
)

// DefaultRulesThreshold is the score at which RulesPredictor flags a URL.
const DefaultRulesThreshold = 3.0

// indicator is one phishing heuristic. Exactly one of pattern and hostCheck
// is set; pattern runs against the full URL.
type indicator struct {
	Name      string
	Weight    float64
	pattern   *regexp.Regexp
	hostCheck func(host string) bool
}

func (ind indicator) match(raw, host string) bool {
	if ind.hostCheck != nil {
		return ind.hostCheck(host)
	}
	return ind.pattern.MatchString(raw)
}

var indicators = []indicator{
	{Name: "ip_host", Weight: 2, hostCheck: func(h string) bool {
		_, ok := netguard.HostIP(h)
		return ok
	}},
	{Name: "private_host", Weight: 1, hostCheck: func(h string) bool {
		ip, ok := netguard.HostIP(h)
		return ok && netguard.IsPrivate(ip)
	}},
	{Name: "punycode", Weight: 1.5, hostCheck: func(h string) bool { return strings.Contains(h, "xn--") }},
	{Name: "deep_subdomains", Weight: 1, hostCheck: func(h string) bool { return strings.Count(h, ".") >= 4 }},
	{Name: "hyphenated_host", Weight: 0.5, hostCheck: func(h string) bool { return strings.Contains(h, "-") }},
	{Name: "suspicious_tld", Weight: 1, pattern: regexp.MustCompile(`(?i)^(?:[a-z]+://)?[^/?#]*\.(tk|ml|ga|cf|gq|xyz|top|zip|country|work)(?::\d+)?(?:[/?#]|$)`)},
	{Name: "userinfo", Weight: 2, pattern: regexp.MustCompile(`^(?:[a-z]+://)?[^/?#]*@`)},
	{Name: "embedded_redirect", Weight: 1, pattern: regexp.MustCompile(`(?i)[^:/]//|=https?(?::|%3a)`)},
	{Name: "lure_words", Weight: 1, pattern: regexp.MustCompile(`(?i)(log-?in|sign-?in|verif(y|ication)|account|update|secure|webscr|banking|confirm|password)`)},
	{Name: "brand_names", Weight: 1, pattern: regexp.MustCompile(`(?i)(paypal|apple|microsoft|office365|amazon|ebay|netflix|wellsfargo|chase|skype)`)},
	{Name: "script_payload", Weight: 1, pattern: regexp.MustCompile(`(?i)\.(php|cgi|exe|scr)(?:[?#/]|$)`)},
	{Name: "heavy_encoding", Weight: 0.5, pattern: regexp.MustCompile(`(%[0-9a-fA-F]{2}.*){4,}`)},
	{Name: "long_url", Weight: 1, pattern: regexp.MustCompile(`^.{76,}`)},
}

// RulesPredictor flags URLs by summing the weights of matched heuristics. It
// needs no artifact and emits integer labels 0 and 1.
type RulesPredictor struct {
	threshold float64
}

// NewRulesPredictor returns a heuristic predictor. A non-positive threshold
// selects DefaultRulesThreshold.
func NewRulesPredictor(threshold float64) *RulesPredictor {
	if threshold <= 0 {
		threshold = DefaultRulesThreshold
	}
	return &RulesPredictor{threshold: threshold}
}

// Matches names the indicators raw triggers, in table order.
func (p *RulesPredictor) Matches(raw string) []string {
	raw = strings.TrimSpace(raw)
	host := netguard.Host(raw)
	var out []string
	for _, ind := range indicators {
		if ind.match(raw, host) {
			out = append(out, ind.Name)
		}
	}
	return out
}

// Score sums the weights of every matched indicator.
func (p *RulesPredictor) Score(raw string) float64 {
	raw = strings.TrimSpace(raw)
	host := netguard.Host(raw)
	var score float64
	for _, ind := range indicators {
		if ind.match(raw, host) {
			score += ind.Weight
		}
	}
	return score
}

func (p *RulesPredictor) Describe() Info {
	return Info{
		Backend:   BackendRules,
		Labels:    []Label{RulesBenign, RulesMalicious},
		LabelKind: KindInt.String(),
		Features:  len(indicators),
	}
}

func (p *RulesPredictor) Classify(ctx context.Context, inputs []string) ([]Label, error) {
	out := make([]Label, 0, len(inputs))
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if p.Score(in) >= p.threshold {
			out = append(out, RulesMalicious)
		} else {
			out = append(out, RulesBenign)
		}
	}
	return out, nil
}
