// Package roles maps Discord roles onto the system's permission roles.
package roles

import (
	"errors"
	"strings"
)

type SystemRole string

const (
	Staff         SystemRole = "staff"
	Dispatcher    SystemRole = "dispatcher"
	Administrator SystemRole = "administrator"
	CEO           SystemRole = "ceo"
)

// ErrEmptyInput is returned by Resolve when no mappings matched.
var ErrEmptyInput = errors.New("roles: no role mappings to resolve")

var known = map[SystemRole]struct{}{
	Staff:         {},
	Dispatcher:    {},
	Administrator: {},
	CEO:           {},
}

// Valid reports whether r is one of the system roles.
func (r SystemRole) Valid() bool {
	_, ok := known[r]
	return ok
}

// ParseSystemRole normalises s and reports whether it names a system role.
func ParseSystemRole(s string) (SystemRole, bool) {
	r := SystemRole(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// CanManage reports whether r may run role syncs and edit role mappings.
func (r SystemRole) CanManage() bool {
	switch r {
	case CEO, Administrator, Dispatcher:
		return true
	}
	return false
}

// Mapping ties a Discord role to a system role.
type Mapping struct {
	ID              string     `json:"id"`
	DiscordRoleID   string     `json:"discord_role_id"`
	DiscordRoleName string     `json:"discord_role_name"`
	SystemRole      SystemRole `json:"system_role"`
	AutoVerify      bool       `json:"auto_verify"`
}

type Resolved struct {
	SystemRole SystemRole `json:"system_role"`
	// Verified is the AutoVerify flag of the winning mapping only.
	Verified bool `json:"verified"`
	// DiscordRoleName is empty when the result is a fallback.
	DiscordRoleName string `json:"discord_role,omitempty"`
}

// Priority ranks system roles. Higher wins; roles not in the table rank 0.
type Priority map[SystemRole]int

// NewPriority builds a Priority from roles listed highest first.
func NewPriority(order ...SystemRole) Priority {
	p := make(Priority, len(order))
	for i, r := range order {
		p[r] = len(order) - i
	}
	return p
}

// DefaultPriority is ceo > administrator > dispatcher > staff.
var DefaultPriority = NewPriority(CEO, Administrator, Dispatcher, Staff)

// Rank of r; unknown roles are 0.
func (p Priority) Rank(r SystemRole) int {
	return p[r]
}

// Resolve picks the mapping with the highest ranked system role. The first
// mapping wins ties.
func (p Priority) Resolve(mappings []Mapping) (Resolved, error) {
	if len(mappings) == 0 {
		return Resolved{}, ErrEmptyInput
	}
	best := mappings[0]
	for _, m := range mappings[1:] {
		if p.Rank(m.SystemRole) > p.Rank(best.SystemRole) {
			best = m
		}
	}
	return Resolved{
		SystemRole:      best.SystemRole,
		Verified:        best.AutoVerify,
		DiscordRoleName: best.DiscordRoleName,
	}, nil
}

// ResolveOrDefault resolves mappings, falling back to an unverified fallback
// role when nothing matched.
func (p Priority) ResolveOrDefault(mappings []Mapping, fallback SystemRole) Resolved {
	res, err := p.Resolve(mappings)
	if errors.Is(err, ErrEmptyInput) {
		return Resolved{SystemRole: fallback}
	}
	return res
}

// Resolve uses DefaultPriority.
func Resolve(mappings []Mapping) (Resolved, error) {
	return DefaultPriority.Resolve(mappings)
}

// Match returns the configured mappings whose Discord role is held, in
// configuration order.
func Match(mappings []Mapping, held []string) []Mapping {
	if len(held) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(held))
	for _, id := range held {
		set[id] = struct{}{}
	}
	var out []Mapping
	for _, m := range mappings {
		if _, ok := set[m.DiscordRoleID]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Names lists the Discord role names of mappings.
func Names(mappings []Mapping) []string {
	out := make([]string, 0, len(mappings))
	for _, m := range mappings {
		out = append(out, m.DiscordRoleName)
	}
	return out
}
