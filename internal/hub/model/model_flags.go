package model

import (
	"fmt"
	"strings"
)

// Role is a bit-flag set of hub roles. A user may hold several at once.
type Role uint

const (
	RoleResearcher Role = 1 << iota
	RoleTechnical
	RoleAdmin
	RoleSuperuser
)

var roleNames = []struct {
	flag Role
	name string
}{
	{RoleSuperuser, "SUPERUSER"},
	{RoleAdmin, "ADMIN"},
	{RoleTechnical, "TECHNICAL"},
	{RoleResearcher, "RESEARCHER"},
}

// Has reports whether all flags in r2 are set.
func (r Role) Has(r2 Role) bool {
	return r&r2 == r2
}

func (r Role) String() string {
	var names []string
	for _, rn := range roleNames {
		if r.Has(rn.flag) {
			names = append(names, rn.name)
		}
	}
	if len(names) == 0 {
		return "NONE"
	}
	return strings.Join(names, "|")
}

// ParseRole converts a role name to its flag. Comparison with raw strings is
// confined to this boundary; call sites compare typed values.
func ParseRole(s string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SUPERUSER":
		return RoleSuperuser, nil
	case "ADMIN":
		return RoleAdmin, nil
	case "TECHNICAL":
		return RoleTechnical, nil
	case "RESEARCHER":
		return RoleResearcher, nil
	}
	return 0, fmt.Errorf("unknown role: %q", s)
}

// Affiliation is a bit-flag set of a researcher's relationships to an
// organisation; both may hold simultaneously.
type Affiliation uint

const (
	AffiliationEducation Affiliation = 1 << iota // EDU
	AffiliationEmployment                        // EMP
)

func (a Affiliation) Has(a2 Affiliation) bool {
	return a&a2 == a2
}

func (a Affiliation) String() string {
	var names []string
	if a.Has(AffiliationEducation) {
		names = append(names, "EDU")
	}
	if a.Has(AffiliationEmployment) {
		names = append(names, "EMP")
	}
	if len(names) == 0 {
		return "NONE"
	}
	return strings.Join(names, "|")
}

// ParseAffiliationClaim maps one unscoped-affiliation claim value from the
// identity provider to a flag. Unrecognised values map to zero.
func ParseAffiliationClaim(claim string) Affiliation {
	switch strings.ToLower(strings.TrimSpace(claim)) {
	case "faculty", "staff", "employee":
		return AffiliationEmployment
	case "student", "alum":
		return AffiliationEducation
	}
	return 0
}
