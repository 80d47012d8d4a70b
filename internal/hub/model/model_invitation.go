package model

import "time"

// InvitationKind discriminates the invitation variants.
type InvitationKind int

const (
	InvitationKindUser InvitationKind = iota
	InvitationKindOrg
)

// Task types a user invitation may originate from.
const (
	TaskTypeAffiliation = "affiliation"
	TaskTypeFunding     = "funding"
	TaskTypePeerReview  = "peer-review"
	TaskTypeWork        = "work"
	TaskTypeProperty    = "property"
	TaskTypeOtherID     = "other-id"
)

// UserInvitation invites a researcher to link their ORCID record so the
// organisation can write affiliation data on their behalf.
type UserInvitation struct {
	BaseModel
	InvitationID string      `gorm:"column:invitation_id;uniqueIndex" json:"invitationId"`
	Email        string      `gorm:"column:email;index" json:"email"`
	InviterID    string      `gorm:"column:inviter_id" json:"inviterId,omitempty"`
	InviteeID    string      `gorm:"column:invitee_id;index" json:"inviteeId,omitempty"`
	OrgID        string      `gorm:"column:org_id;index" json:"orgId"`
	Token        string      `gorm:"column:token;uniqueIndex" json:"token"`
	Affiliations Affiliation `gorm:"column:affiliations" json:"affiliations"`
	TaskType     string      `gorm:"column:task_type" json:"taskType,omitempty"`
	TaskID       string      `gorm:"column:task_id" json:"taskId,omitempty"`
	ConfirmedAt  *time.Time  `gorm:"column:confirmed_at" json:"confirmedAt,omitempty"`
}

func (UserInvitation) TableName() string {
	return "t_user_invitation"
}

// OrgInvitation onboards an organisation: it exists to establish the
// organisation's own API client credentials, not to write a researcher's
// record.
type OrgInvitation struct {
	BaseModel
	InvitationID string     `gorm:"column:invitation_id;uniqueIndex" json:"invitationId"`
	Email        string     `gorm:"column:email;index" json:"email"`
	InviterID    string     `gorm:"column:inviter_id" json:"inviterId,omitempty"`
	InviteeID    string     `gorm:"column:invitee_id;index" json:"inviteeId,omitempty"`
	OrgID        string     `gorm:"column:org_id;index" json:"orgId"`
	Token        string     `gorm:"column:token;uniqueIndex" json:"token"`
	TechContact  bool       `gorm:"column:tech_contact" json:"techContact"`
	ConfirmedAt  *time.Time `gorm:"column:confirmed_at" json:"confirmedAt,omitempty"`
}

func (OrgInvitation) TableName() string {
	return "t_org_invitation"
}

// Invitation is the tagged union handed to callers; exactly one of User/Org
// is set, matching Kind.
type Invitation struct {
	Kind InvitationKind
	User *UserInvitation
	Org  *OrgInvitation
}

func (i *Invitation) Email() string {
	if i.Kind == InvitationKindOrg {
		return i.Org.Email
	}
	return i.User.Email
}

func (i *Invitation) OrgID() string {
	if i.Kind == InvitationKindOrg {
		return i.Org.OrgID
	}
	return i.User.OrgID
}

func (i *Invitation) Token() string {
	if i.Kind == InvitationKindOrg {
		return i.Org.Token
	}
	return i.User.Token
}

func (i *Invitation) CreatedAt() time.Time {
	if i.Kind == InvitationKindOrg {
		return i.Org.CreatedAt
	}
	return i.User.CreatedAt
}

func (i *Invitation) ConfirmedAt() *time.Time {
	if i.Kind == InvitationKindOrg {
		return i.Org.ConfirmedAt
	}
	return i.User.ConfirmedAt
}
