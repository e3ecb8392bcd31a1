package models

import (
	dErrors "trailhead/pkg/domain-errors"
)

// RoleTag is the closed set of global role tags assigned by the backend.
// Unknown tags are rejected at the trust boundary rather than silently denied later.
type RoleTag string

const (
	RoleExplorer    RoleTag = "explorer"
	RoleGuide       RoleTag = "guide"
	RoleMasterGuide RoleTag = "master_guide"
	RoleAdmin       RoleTag = "admin"
)

// ParseRoleTag validates a role tag string coming from the backend.
//
// Usage: call at trust boundaries for external input.
//
// Errors: returns CodeInvalidInput for unknown tags.
func ParseRoleTag(s string) (RoleTag, error) {
	switch RoleTag(s) {
	case RoleExplorer, RoleGuide, RoleMasterGuide, RoleAdmin:
		return RoleTag(s), nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown role tag: "+s)
	}
}

// RoleSet holds the global role tags of an authenticated user.
type RoleSet map[RoleTag]struct{}

// NewRoleSet builds a RoleSet from validated tags.
func NewRoleSet(tags ...RoleTag) RoleSet {
	set := make(RoleSet, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	return set
}

// ParseRoleSet validates and collects role tag strings from the backend.
// A single unknown tag invalidates the whole set.
func ParseRoleSet(raw []string) (RoleSet, error) {
	set := make(RoleSet, len(raw))
	for _, s := range raw {
		tag, err := ParseRoleTag(s)
		if err != nil {
			return nil, err
		}
		set[tag] = struct{}{}
	}
	return set, nil
}

// Has reports membership of a single tag. master_guide does not satisfy a
// plain Has(RoleGuide) test; capability widening lives in the session predicates.
func (s RoleSet) Has(tag RoleTag) bool {
	_, ok := s[tag]
	return ok
}

// Tags returns the tags in the set, for logging and serialization.
func (s RoleSet) Tags() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, string(t))
	}
	return out
}

// RoleLevel is the per-team numeric authority rank. Lower value means more
// authority: 1 is Master Guide, 4 is Base Guide. Every comparison in the
// system depends on this inversion.
type RoleLevel int

const (
	LevelMasterGuide RoleLevel = 1
	LevelSeniorGuide RoleLevel = 2
	LevelTrailGuide  RoleLevel = 3
	LevelBaseGuide   RoleLevel = 4
)

// Valid reports whether the level is in the known 1..4 range.
func (l RoleLevel) Valid() bool {
	return l >= LevelMasterGuide && l <= LevelBaseGuide
}

// AtLeastAsSenior reports whether the level carries at least the authority of
// required, i.e. is numerically less than or equal to it.
func (l RoleLevel) AtLeastAsSenior(required RoleLevel) bool {
	return l <= required
}

// Identity is the authenticated user record. Present iff a valid credential
// has been confirmed with the backend.
type Identity struct {
	UserID    int64
	FirstName string
	LastName  string
	Email     string
}

// TeamMembership ties a user to a team with a per-team authority level.
type TeamMembership struct {
	TeamID int64
	Level  RoleLevel
}
