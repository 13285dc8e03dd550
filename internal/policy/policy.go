// Package policy encodes the role-hierarchy exceptions layered on top of
// coarse permissions: superadmin outranks admin, admin outranks regular
// roles, and the superadmin role itself is untouchable. All predicates are
// pure; role names compare case-insensitively.
package policy

import "strings"

const (
	// RoleSuperadmin is unrestricted and bypasses every check upstream.
	RoleSuperadmin = "superadmin"
	// RoleAdmin may manage everything except admin- and superadmin-level
	// objects.
	RoleAdmin = "admin"
)

// Rule identifies a fine-tuning predicate. Routes bind a Rule at
// registration time, so a missing rule is a compile error rather than a
// silent request-time fallthrough.
type Rule int

const (
	// RuleNone means the route relies on its coarse permission alone.
	RuleNone Rule = iota

	// Role-name-targeting rules: the target is a role name the caller is
	// trying to touch or hand out.
	RuleCreateUser
	RuleUpdateUser
	RuleViewRole
	RuleCreateRole
	RuleModifyRole
	RuleDeleteRole

	// User-targeting rules: the target is another user, judged by the
	// roles that user holds.
	RuleModifyUser
	RuleUpdateStatus
	RuleDeleteUser
)

var ruleNames = map[Rule]string{
	RuleNone:         "none",
	RuleCreateUser:   "canCreateUser",
	RuleUpdateUser:   "canUpdateUser",
	RuleViewRole:     "canViewRole",
	RuleCreateRole:   "canCreateRole",
	RuleModifyRole:   "canModifyRole",
	RuleDeleteRole:   "canDeleteRole",
	RuleModifyUser:   "canModifyUser",
	RuleUpdateStatus: "canUpdateStatus",
	RuleDeleteUser:   "canDeleteUser",
}

func (r Rule) String() string {
	if name, ok := ruleNames[r]; ok {
		return name
	}
	return "unknown"
}

// requiresElevated reports whether the rule denies callers without an
// admin-tier role even when no target is supplied. Role-definition
// operations and user creation are admin territory outright; the remaining
// rules restrict only specific targets.
func (r Rule) requiresElevated() bool {
	switch r {
	case RuleViewRole, RuleCreateRole, RuleModifyRole, RuleCreateUser:
		return true
	}
	return false
}

// Allows evaluates a role-name-targeting rule for a caller holding
// callerRoles against targetRole. An empty targetRole means the request
// does not touch the hierarchy; only elevated rules still require an
// admin-tier caller in that case.
func Allows(rule Rule, callerRoles []string, targetRole string) bool {
	if rule == RuleNone {
		return true
	}
	caller := tier(callerRoles)
	target := strings.TrimSpace(strings.ToLower(targetRole))

	if target == "" {
		if rule.requiresElevated() {
			return caller != tierRegular
		}
		return true
	}

	switch caller {
	case tierSuperadmin:
		return target != RoleSuperadmin
	case tierAdmin:
		return target != RoleSuperadmin && target != RoleAdmin
	default:
		return false
	}
}

// AllowsUserTarget evaluates a user-targeting rule: the caller's privilege
// is compared against the roles held by the target user. A superadmin
// target is off-limits to everyone; an admin target yields only to a
// superadmin caller; regular targets carry no hierarchy restriction and
// the coarse permission alone governs.
func AllowsUserTarget(rule Rule, callerRoles, targetRoles []string) bool {
	if rule == RuleNone {
		return true
	}
	targets := tier(targetRoles)
	switch targets {
	case tierSuperadmin:
		return false
	case tierAdmin:
		return tier(callerRoles) == tierSuperadmin
	default:
		return true
	}
}

type roleTier int

const (
	tierRegular roleTier = iota
	tierAdmin
	tierSuperadmin
)

// tier returns the highest privilege tier among the given role names.
func tier(roles []string) roleTier {
	highest := tierRegular
	for _, role := range roles {
		switch strings.TrimSpace(strings.ToLower(role)) {
		case RoleSuperadmin:
			return tierSuperadmin
		case RoleAdmin:
			highest = tierAdmin
		}
	}
	return highest
}
