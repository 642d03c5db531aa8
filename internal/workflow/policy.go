// internal/workflow/policy.go

// Package workflow owns the status lifecycle of application records:
// which statuses each record variant may hold, which transitions are
// permitted, and the transactional transition operation itself.
package workflow

import (
	"fmt"
	"sort"

	"grant-backend/internal/common/config"
	"grant-backend/internal/models"
)

// Policy holds per-variant status rules resolved from configuration.
type Policy struct {
	variants map[models.Source]variantPolicy
}

type variantPolicy struct {
	allowed     map[models.Status]bool
	allowedList []string
	// transitions constrains only the listed origin statuses; origins
	// without an entry may move to any allowed status.
	transitions map[models.Status]map[models.Status]bool
	minFunding  float64
	maxFunding  float64
}

// NewPolicy builds the policy from the workflow configuration. Every
// configured variant must declare at least one allowed status; transition
// targets must themselves be allowed.
func NewPolicy(cfg config.WorkflowConfig) (*Policy, error) {
	policy := &Policy{variants: make(map[models.Source]variantPolicy)}

	for name, vc := range cfg.Variants {
		source := models.Source(name)
		if len(vc.AllowedStatuses) == 0 {
			return nil, fmt.Errorf("workflow variant %q has no allowed statuses", name)
		}

		vp := variantPolicy{
			allowed:     make(map[models.Status]bool, len(vc.AllowedStatuses)),
			transitions: make(map[models.Status]map[models.Status]bool, len(vc.Transitions)),
			minFunding:  vc.MinFundingAmount,
			maxFunding:  vc.MaxFundingAmount,
		}
		for _, s := range vc.AllowedStatuses {
			vp.allowed[models.Status(s)] = true
		}
		vp.allowedList = make([]string, 0, len(vp.allowed))
		for s := range vp.allowed {
			vp.allowedList = append(vp.allowedList, string(s))
		}
		sort.Strings(vp.allowedList)

		for from, targets := range vc.Transitions {
			targetSet := make(map[models.Status]bool, len(targets))
			for _, to := range targets {
				if !vp.allowed[models.Status(to)] {
					return nil, fmt.Errorf("workflow variant %q: transition target %q is not an allowed status", name, to)
				}
				targetSet[models.Status(to)] = true
			}
			vp.transitions[models.Status(from)] = targetSet
		}

		policy.variants[source] = vp
	}

	return policy, nil
}

func (p *Policy) variant(source models.Source) (variantPolicy, bool) {
	vp, ok := p.variants[source]
	return vp, ok
}

// AllowedStatuses lists the statuses a variant's records may hold,
// sorted for stable error messages.
func (p *Policy) AllowedStatuses(source models.Source) []string {
	vp, ok := p.variant(source)
	if !ok {
		return nil
	}
	return vp.allowedList
}

// IsAllowed reports whether the status is in the variant's allowed set.
func (p *Policy) IsAllowed(source models.Source, status models.Status) bool {
	vp, ok := p.variant(source)
	return ok && vp.allowed[status]
}

// CanTransition reports whether a record of the variant may move from
// one status to another. Both statuses must be allowed; origins without
// a configured transition list may move to any allowed status.
func (p *Policy) CanTransition(source models.Source, from, to models.Status) bool {
	vp, ok := p.variant(source)
	if !ok || !vp.allowed[to] {
		return false
	}
	targets, constrained := vp.transitions[from]
	if !constrained {
		return true
	}
	return targets[to]
}

// FundingBounds returns the variant's funding amount range. A zero max
// means unbounded above.
func (p *Policy) FundingBounds(source models.Source) (min, max float64, ok bool) {
	vp, found := p.variant(source)
	if !found {
		return 0, 0, false
	}
	return vp.minFunding, vp.maxFunding, true
}

// Knows reports whether the variant is configured at all.
func (p *Policy) Knows(source models.Source) bool {
	_, ok := p.variant(source)
	return ok
}
