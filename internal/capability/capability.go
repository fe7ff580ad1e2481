/*

Capability checks are an injected policy object rather than inline role
lookups: every privileged vault or strategy operation asks the Checker first,
before reading any state, and the check itself is pure and testable.

*/

package capability

import (
	"errors"

	"github.com/openvault-labs/pcv/internal/types"
)

var (
	ErrUnauthorized = errors.New("principal lacks required capability")
)

// Checker answers whether a principal holds a named capability.
type Checker interface {
	HasCapability(principal types.Principal, cap types.Capability) bool
}

// Require returns ErrUnauthorized unless the principal holds the capability.
func Require(checker Checker, principal types.Principal, cap types.Capability) error {
	if checker == nil || principal == "" {
		return ErrUnauthorized
	}
	if !checker.HasCapability(principal, cap) {
		return ErrUnauthorized
	}
	return nil
}

// StaticPolicy is a fixed principal -> capability-set mapping, populated at
// bootstrap from configuration.
type StaticPolicy struct {
	grants map[types.Principal]map[types.Capability]bool
}

// NewStaticPolicy creates an empty policy.
func NewStaticPolicy() *StaticPolicy {
	return &StaticPolicy{grants: make(map[types.Principal]map[types.Capability]bool)}
}

// Grant gives the principal the capability. Granting twice is harmless.
func (p *StaticPolicy) Grant(principal types.Principal, cap types.Capability) {
	if principal == "" {
		return
	}
	if p.grants[principal] == nil {
		p.grants[principal] = make(map[types.Capability]bool)
	}
	p.grants[principal][cap] = true
}

// HasCapability reports whether the principal holds the capability.
func (p *StaticPolicy) HasCapability(principal types.Principal, cap types.Capability) bool {
	if caps, ok := p.grants[principal]; ok {
		return caps[cap]
	}
	return false
}
