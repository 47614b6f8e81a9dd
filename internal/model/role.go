package model

type Role string

const (
	RoleSystem    = Role("system")
	RoleUser      = Role("user")
	RoleAssistant = Role("assistant")
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleSystem, RoleUser, RoleAssistant:
		return Role(s), true
	default:
		return "", false
	}
}
