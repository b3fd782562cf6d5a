package models

import "strings"

// Role is one of the fixed participant roles of the PES workflow.
type Role string

const (
	RoleColaborador Role = "COLABORADOR"
	RoleInstalador  Role = "INSTALADOR"
	RoleGestor      Role = "GESTOR"
	RoleCalidad     Role = "CALIDAD"
	RoleSoporte     Role = "SOPORTE"
	RoleAdmin       Role = "ADMIN"
)

// Roles lists every role in display order.
var Roles = []Role{RoleColaborador, RoleInstalador, RoleGestor, RoleCalidad, RoleSoporte, RoleAdmin}

// ParseRole normalizes a role name. Unknown names return false.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Roles {
		if r == known {
			return r, true
		}
	}
	return "", false
}

// In reports whether the role is one of the given roles.
func (r Role) In(roles ...Role) bool {
	for _, candidate := range roles {
		if r == candidate {
			return true
		}
	}
	return false
}

// Zone is an operational zone. Records and users belong to exactly one.
type Zone string

const (
	ZoneNorte  Zone = "NORTE"
	ZoneSur    Zone = "SUR"
	ZoneEste   Zone = "ESTE"
	ZoneOeste  Zone = "OESTE"
	ZoneCentro Zone = "CENTRO"
)

// Zones lists every zone.
var Zones = []Zone{ZoneNorte, ZoneSur, ZoneEste, ZoneOeste, ZoneCentro}

// IsValid reports whether z is a known zone.
func (z Zone) IsValid() bool {
	for _, known := range Zones {
		if z == known {
			return true
		}
	}
	return false
}

// User is the external identity acting on records. It is consumed read-only.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Zone     Zone   `json:"zone"`
	Status   string `json:"status"`
}

// DisplayName returns the name used in history entries.
func (u User) DisplayName() string {
	if n := strings.TrimSpace(u.Username); n != "" {
		return n
	}
	return strings.TrimSpace(u.Name)
}
