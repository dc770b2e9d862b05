package transport

import (
	"fmt"
	"regexp"

	"github.com/rs/zerolog/log"
)

// defaultDeny mirrors the upstream robots rules plus paths that never hold
// catalog content.
var defaultDeny = []string{
	`(?i)/search(?:$|\?|/)`,
	`(?i)/cart(?:$|\?|/)`,
	`(?i)/checkout(?:$|\?|/)`,
	`(?i)/account(?:$|\?|/)`,
	`(?i)/admin(?:$|\?|/)`,
	`(?i)[?&]sort_by=`,
	`/collections/[^?]*\+`,
	`/collections/[^?]*%2[Bb]`,
	`(?i)[?&]filter[^&]*&[^&]*filter`,
	`(?i)/recommendations/products`,
	`(?i)-[a-f0-9]{8}-remote`,
}

// Policy decides which URLs may be fetched at all.
type Policy struct {
	deny  []*regexp.Regexp
	allow []*regexp.Regexp
}

// NewPolicy compiles the default deny rules plus extraDeny. When allow is
// non-empty a URL must also match one of its patterns.
func NewPolicy(extraDeny, allow []string) (*Policy, error) {
	p := &Policy{}

	for _, pattern := range append(append([]string{}, defaultDeny...), extraDeny...) {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid deny pattern %q: %w", pattern, err)
		}
		p.deny = append(p.deny, re)
	}
	for _, pattern := range allow {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid allow pattern %q: %w", pattern, err)
		}
		p.allow = append(p.allow, re)
	}

	return p, nil
}

// DefaultPolicy returns the policy with only the built-in deny rules.
func DefaultPolicy() *Policy {
	p, err := NewPolicy(nil, nil)
	if err != nil {
		panic(err)
	}
	return p
}

// Allowed reports whether url may be fetched.
func (p *Policy) Allowed(url string) bool {
	for _, re := range p.deny {
		if re.MatchString(url) {
			log.Debug().Str("url", url).Str("rule", re.String()).Msg("URL denied by crawl policy")
			return false
		}
	}

	if len(p.allow) == 0 {
		return true
	}
	for _, re := range p.allow {
		if re.MatchString(url) {
			return true
		}
	}

	log.Debug().Str("url", url).Msg("URL matches no allow rule")
	return false
}
