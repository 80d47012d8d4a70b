package model

// UserOrg joins users to organisations. The composite uniqueness on
// (user_id, org_id) is the concurrency guard for concurrent logins; rows are
// created lazily via get-or-create.
type UserOrg struct {
	BaseModel
	UserID       string      `gorm:"column:user_id;uniqueIndex:idx_user_org" json:"userId"`
	OrgID        string      `gorm:"column:org_id;uniqueIndex:idx_user_org" json:"orgId"`
	IsAdmin      bool        `gorm:"column:is_admin" json:"isAdmin"`
	Affiliations Affiliation `gorm:"column:affiliations" json:"affiliations"`
}

func (UserOrg) TableName() string {
	return "t_user_org"
}
