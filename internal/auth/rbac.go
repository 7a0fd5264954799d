package auth

import "strings"

type Role string

const (
	RoleNone    Role = ""
	RoleCoach   Role = "coach"
	RoleCoachee Role = "coachee"
	RoleAdmin   Role = "admin"
)

// NormalizeRole maps stored or submitted role strings onto a known role.
// Unknown values map to RoleNone.
func NormalizeRole(role string) Role {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case string(RoleCoach):
		return RoleCoach
	case string(RoleCoachee):
		return RoleCoachee
	case string(RoleAdmin):
		return RoleAdmin
	default:
		return RoleNone
	}
}

// SelfAssignable reports whether a user may pick role for themselves.
func (r Role) SelfAssignable() bool {
	return r == RoleCoach || r == RoleCoachee
}

func HasRole(role Role, allowed ...Role) bool {
	for _, candidate := range allowed {
		if role != RoleNone && role == candidate {
			return true
		}
	}
	return false
}

// Landing paths.
const (
	PathLogin            = "/login"
	PathOnboarding       = "/onboarding"
	PathCoachDashboard   = "/coach"
	PathCoacheeDashboard = "/coachee"
	PathAdminDashboard   = "/admin"
)

// HomePath is the dashboard a role lands on after sign-in.
func (r Role) HomePath() string {
	switch r {
	case RoleCoach:
		return PathCoachDashboard
	case RoleCoachee:
		return PathCoacheeDashboard
	case RoleAdmin:
		return PathAdminDashboard
	default:
		return PathOnboarding
	}
}
