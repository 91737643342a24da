package policy

import (
	"fmt"
	"strings"

	"github.com/Knetic/govaluate"
)

// BypassRules is a compiled set of expressions that exempt requests
// from the authentication check. Portal self-traffic must always match
// one of these or clients could never reach the login endpoint.
type BypassRules struct {
	exprs      []*govaluate.EvaluableExpression
	portalHost string
}

// CompileBypassRules parses semicolon-separated expressions. Each
// expression sees the parameters host, port, ip, method and
// portal_host, and must evaluate to a boolean.
func CompileBypassRules(spec, portalHost string) (*BypassRules, error) {
	rules := &BypassRules{portalHost: strings.ToLower(portalHost)}
	for _, raw := range strings.Split(spec, ";") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		expr, err := govaluate.NewEvaluableExpression(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid bypass rule %q: %w", raw, err)
		}
		rules.exprs = append(rules.exprs, expr)
	}
	return rules, nil
}

// Match reports whether any rule matches the request. Evaluation errors
// (type mismatches, unknown parameters) count as no match: a broken
// rule must not open the gate.
func (r *BypassRules) Match(req *PendingRequest) bool {
	if r == nil || len(r.exprs) == 0 {
		return false
	}
	params := map[string]interface{}{
		"host":        strings.ToLower(req.Host),
		"port":        float64(req.Port),
		"ip":          req.SourceAddress,
		"method":      req.Method,
		"portal_host": r.portalHost,
	}
	for _, expr := range r.exprs {
		result, err := expr.Evaluate(params)
		if err != nil {
			continue
		}
		if matched, ok := result.(bool); ok && matched {
			return true
		}
	}
	return false
}
