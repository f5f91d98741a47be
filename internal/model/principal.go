package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Role uint8

const (
	RoleClient Role = 1 << iota
	RoleDependent
	RoleProfessional
	RoleClinic
	RoleAdmin
)

var roleNames = map[string]Role{
	"client":       RoleClient,
	"dependent":    RoleDependent,
	"professional": RoleProfessional,
	"clinic":       RoleClinic,
	"admin":        RoleAdmin,
}

func ParseRole(s string) (Role, error) {
	r, ok := roleNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// RoleSet is a set of roles held by one principal.
type RoleSet uint8

func NewRoleSet(roles ...Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		s |= RoleSet(r)
	}
	return s
}

// ParseRoleSet builds a RoleSet from role names, skipping unknown ones.
func ParseRoleSet(names []string) RoleSet {
	var s RoleSet
	for _, n := range names {
		if r, err := ParseRole(n); err == nil {
			s |= RoleSet(r)
		}
	}
	return s
}

func (s RoleSet) Has(r Role) bool {
	return s&RoleSet(r) != 0
}

type Capability int

const (
	CapManageAgenda Capability = iota
	CapRecordConsultation
	CapViewSubscription
	CapReviewWebhooks
)

var capabilityRoles = map[Capability]RoleSet{
	CapManageAgenda:       NewRoleSet(RoleProfessional),
	CapRecordConsultation: NewRoleSet(RoleProfessional, RoleClinic),
	CapViewSubscription:   NewRoleSet(RoleProfessional, RoleAdmin),
	CapReviewWebhooks:     NewRoleSet(RoleAdmin),
}

// professionalScoped capabilities act on one professional's data, so the
// principal must carry the professional id they act for.
var professionalScoped = map[Capability]bool{
	CapManageAgenda:       true,
	CapRecordConsultation: true,
	CapViewSubscription:   true,
}

// Can reports whether any role in s grants the capability.
func (s RoleSet) Can(c Capability) bool {
	return s&capabilityRoles[c] != 0
}

// Principal is the authenticated caller.
type Principal struct {
	UserID         uuid.UUID
	ProfessionalID uuid.UUID
	Roles          RoleSet
}

// Can reports whether the principal's roles grant c and, for capabilities
// scoped to a professional, whether the principal is bound to one.
func (p Principal) Can(c Capability) bool {
	if professionalScoped[c] && p.ProfessionalID == uuid.Nil {
		return false
	}
	return p.Roles.Can(c)
}
