// Package rules is the server half of the guard-capability protocol.
//
// It has two layers, both applied to every record request:
//
//   - Declarative predicates (Rule) that compare request parameters with
//     stored fields: list/view need sid == module_user_id, update/delete
//     additionally need d == guard.
//   - Hooks (BeforeCreate, BeforeUpdate) that run before the predicate and
//     enforce the guard state machine: "init" -> promoted once -> frozen.
//
// Together they turn promotion into a single-use compare-and-set: once the
// guard is promoted, a stale d="init" no longer satisfies the update rule.
package rules

import (
	"github.com/aliceout/nodea/internal/common"
	"github.com/aliceout/nodea/internal/server/models"
)

// Params are the capability values taken from the request query string.
type Params struct {
	SID string
	D   string
}

// Op names a record operation.
type Op string

const (
	OpList   Op = "list"
	OpView   Op = "view"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Rule is a declarative predicate over request parameters and a stored row.
type Rule func(p Params, r *models.Record) bool

// SIDMatches allows the request when sid names the record's module.
func SIDMatches(p Params, r *models.Record) bool {
	return r != nil && p.SID != "" && p.SID == r.ModuleUserID
}

// GuardMatches allows the request when d equals the record's current guard.
func GuardMatches(p Params, r *models.Record) bool {
	return r != nil && p.D != "" && p.D == r.Guard
}

// All combines rules with a logical AND.
func All(rules ...Rule) Rule {
	return func(p Params, r *models.Record) bool {
		for _, rule := range rules {
			if !rule(p, r) {
				return false
			}
		}
		return true
	}
}

// Set maps operations to their rules. Operations without a rule are allowed
// for any authenticated caller; create is gated by BeforeCreate alone.
type Set map[Op]Rule

// Default returns the record rules of the protocol.
func Default() Set {
	return Set{
		OpList:   SIDMatches,
		OpView:   SIDMatches,
		OpUpdate: All(SIDMatches, GuardMatches),
		OpDelete: All(SIDMatches, GuardMatches),
	}
}

// Allow evaluates the rule registered for op.
func (s Set) Allow(op Op, p Params, r *models.Record) bool {
	rule, ok := s[op]
	if !ok {
		return true
	}
	return rule(p, r)
}

// IsPlaceholder reports whether guard is the pre-promotion value.
func IsPlaceholder(guard string) bool {
	return guard == common.GuardPlaceholder
}
