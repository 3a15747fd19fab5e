package entity

type Role string

const (
	RoleNone  Role = ""
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

// Mark - host always plays X and moves first, guest plays O.
func (that Role) Mark() Mark {
	switch that {
	case RoleHost:
		return PlayerX
	case RoleGuest:
		return PlayerO
	default:
		return EmptyCell
	}
}
