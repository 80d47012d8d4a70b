package model

// Organisation is a tenant record. Created provisionally (unconfirmed) on
// first SSO login from an unseen institution, or via an explicit invitation;
// confirmed once the technical contact's ORCID client credentials verify
// against the registry's token endpoint.
type Organisation struct {
	BaseModel
	OrgID       string `gorm:"column:org_id;uniqueIndex" json:"orgId"`
	Name        string `gorm:"column:name;uniqueIndex" json:"name"`
	TuakiriName string `gorm:"column:tuakiri_name;index" json:"tuakiriName,omitempty"`
	Confirmed   bool   `gorm:"column:confirmed" json:"confirmed"`

	// Premium Member API credentials.
	OrcidClientID string `gorm:"column:orcid_client_id" json:"orcidClientId,omitempty"`
	OrcidSecret   string `gorm:"column:orcid_secret" json:"-"`

	City    string `gorm:"column:city" json:"city,omitempty"`
	Region  string `gorm:"column:region" json:"region,omitempty"`
	Country string `gorm:"column:country" json:"country,omitempty"`

	DisambiguatedID     string `gorm:"column:disambiguated_id" json:"disambiguatedId,omitempty"`
	DisambiguatedSource string `gorm:"column:disambiguated_source" json:"disambiguatedSource,omitempty"`

	// TechContactID is a weak reference to a User, resolved by id lookup.
	TechContactID string `gorm:"column:tech_contact_id;index" json:"techContactId,omitempty"`

	WebhookURL     string `gorm:"column:webhook_url" json:"webhookUrl,omitempty"`
	WebhookEnabled bool   `gorm:"column:webhook_enabled" json:"webhookEnabled"`
}

func (Organisation) TableName() string {
	return "t_organisation"
}
