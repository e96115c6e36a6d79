package engine

import (
	"pulsegate/pkg/config"
	"pulsegate/pkg/model"
)

// Policy is an ordered list of criteria combined with a short-circuit OR.
// A record is kept as soon as one criterion matches; with no criteria
// every record is dropped.
type Policy struct {
	criteria []Criterion
}

// NewPolicy creates a policy evaluating the criteria in the given order.
func NewPolicy(criteria ...Criterion) *Policy {
	return &Policy{
		criteria: criteria,
	}
}

// PolicyFromConfig builds the policy for cfg: dev address first, then
// funding wallet, each only when enabled. The address sets are shared, so
// later Add/Remove calls are seen by the policy.
func PolicyFromConfig(cfg *config.FilterConfig) *Policy {
	var criteria []Criterion
	if cfg.FilterByDevAddress {
		criteria = append(criteria, NewDevAddressCriterion(cfg.DevAddresses))
	}
	if cfg.FilterByFundingWallet {
		criteria = append(criteria, NewFundingWalletCriterion(cfg.FunderAddresses))
	}
	return NewPolicy(criteria...)
}

// Keep reports whether rec survives the policy.
func (p *Policy) Keep(rec model.Record) bool {
	_, ok := p.Match(rec)
	return ok
}

// Match returns the name of the first criterion that keeps rec.
func (p *Policy) Match(rec model.Record) (string, bool) {
	for _, c := range p.criteria {
		if c.Match(rec) {
			return c.Name(), true
		}
	}
	return "", false
}

// Criteria returns the names of the active criteria in evaluation order.
func (p *Policy) Criteria() []string {
	names := make([]string, len(p.criteria))
	for i, c := range p.criteria {
		names[i] = c.Name()
	}
	return names
}

// Evaluate applies the policy described by cfg to rec.
func Evaluate(rec model.Record, cfg *config.FilterConfig) bool {
	return PolicyFromConfig(cfg).Keep(rec)
}

// KeepNewPair decides new_pairs announcements. Every pair is kept for now;
// this is the hook for deployer- or protocol-based rules.
func KeepNewPair(model.NewPairContent) bool {
	return true
}
