package model

import "time"

// OrcidApiCall is one append-only audit row per outbound Member API call.
// Failures to write these rows never block the underlying call.
type OrcidApiCall struct {
	BaseModel
	UserID    string    `gorm:"column:user_id;index" json:"userId,omitempty"`
	Method    string    `gorm:"column:method" json:"method"`
	URL       string    `gorm:"column:url" json:"url"`
	Query     string    `gorm:"column:query" json:"query,omitempty"`
	Body      string    `gorm:"column:body;type:text" json:"body,omitempty"`
	PutCode   *int      `gorm:"column:put_code" json:"putCode,omitempty"`
	Response  string    `gorm:"column:response;type:text" json:"response,omitempty"`
	Status    int       `gorm:"column:status" json:"status"`
	ElapsedMS int64     `gorm:"column:elapsed_ms" json:"elapsedMs"`
	SentAt    time.Time `gorm:"column:sent_at" json:"sentAt"`
}

func (OrcidApiCall) TableName() string {
	return "t_orcid_api_call"
}

// OrcidAuthorizeCall correlates one OAuth redirect round trip by its state
// value, and detects CSRF on the way back.
type OrcidAuthorizeCall struct {
	BaseModel
	UserID        string `gorm:"column:user_id;index" json:"userId,omitempty"`
	State         string `gorm:"column:state;uniqueIndex" json:"state"`
	AuthURL       string `gorm:"column:auth_url;type:text" json:"authUrl"`
	TokenResponse string `gorm:"column:token_response;type:text" json:"tokenResponse,omitempty"`
	ElapsedMS     int64  `gorm:"column:elapsed_ms" json:"elapsedMs"`
}

func (OrcidAuthorizeCall) TableName() string {
	return "t_orcid_authorize_call"
}
