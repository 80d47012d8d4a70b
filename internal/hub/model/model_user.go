package model

// User is a hub identity record, created on first SSO login, ORCID login or
// invitation. Orcid is set at most once; a different remote iD for the same
// user is an error, never an overwrite.
type User struct {
	BaseModel
	UserID    string `gorm:"column:user_id;uniqueIndex" json:"userId"`
	Email     string `gorm:"column:email;uniqueIndex" json:"email"`
	Eppn      string `gorm:"column:eppn;index" json:"eppn,omitempty"`
	Orcid     string `gorm:"column:orcid;index" json:"orcid,omitempty"`
	FirstName string `gorm:"column:first_name" json:"firstName"`
	LastName  string `gorm:"column:last_name" json:"lastName"`
	Name      string `gorm:"column:name" json:"name"`
	Roles     Role   `gorm:"column:roles" json:"roles"`
	Confirmed bool   `gorm:"column:confirmed" json:"confirmed"`
	// OrgID is the user's current organisation context, a weak reference.
	OrgID string `gorm:"column:org_id;index" json:"orgId,omitempty"`
}

func (User) TableName() string {
	return "t_user"
}

// FullName prefers the display name over the name parts.
func (u *User) FullName() string {
	if u.Name != "" {
		return u.Name
	}
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.LastName != "":
		return u.LastName
	default:
		return u.FirstName
	}
}
