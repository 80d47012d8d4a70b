package model

import "time"

// OrcidToken is one OAuth grant per (user, organisation, scope-set).
// Re-authorization with the same scope-set updates the row in place; the
// composite uniqueness makes duplicates impossible under concurrent
// callbacks. Deleted when the registry reports 401 (revoked by the user).
type OrcidToken struct {
	BaseModel
	UserID       string    `gorm:"column:user_id;uniqueIndex:idx_token_user_org_scopes" json:"userId"`
	OrgID        string    `gorm:"column:org_id;uniqueIndex:idx_token_user_org_scopes" json:"orgId"`
	Scopes       string    `gorm:"column:scopes;uniqueIndex:idx_token_user_org_scopes" json:"scopes"`
	AccessToken  string    `gorm:"column:access_token" json:"-"`
	RefreshToken string    `gorm:"column:refresh_token" json:"-"`
	ExpiresIn    int64     `gorm:"column:expires_in" json:"expiresIn"`
	IssuedAt     time.Time `gorm:"column:issued_at" json:"issuedAt"`
}

func (OrcidToken) TableName() string {
	return "t_orcid_token"
}
