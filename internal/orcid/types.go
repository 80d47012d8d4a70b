package orcid

// StringValue wraps ORCID's {"value": "..."} leaves.
type StringValue struct {
	Value string `json:"value"`
}

type Address struct {
	City    string `json:"city,omitempty"`
	Region  string `json:"region,omitempty"`
	Country string `json:"country,omitempty"`
}

type DisambiguatedOrganization struct {
	Identifier string `json:"disambiguated-organization-identifier"`
	Source     string `json:"disambiguation-source"`
}

type Organization struct {
	Name                      string                     `json:"name"`
	Address                   Address                    `json:"address"`
	DisambiguatedOrganization *DisambiguatedOrganization `json:"disambiguated-organization,omitempty"`
}

// Affiliation is the employment/education section payload.
type Affiliation struct {
	PutCode      *int         `json:"put-code,omitempty"`
	Department   string       `json:"department-name,omitempty"`
	RoleTitle    string       `json:"role-title,omitempty"`
	StartDate    *PartialDate `json:"start-date,omitempty"`
	EndDate      *PartialDate `json:"end-date,omitempty"`
	Organization Organization `json:"organization"`
}

type ExternalID struct {
	Type         string       `json:"external-id-type"`
	Value        string       `json:"external-id-value"`
	URL          *StringValue `json:"external-id-url,omitempty"`
	Relationship string       `json:"external-id-relationship,omitempty"`
}

type ExternalIDs struct {
	ExternalID []ExternalID `json:"external-id"`
}

type Amount struct {
	Value        string `json:"value"`
	CurrencyCode string `json:"currency-code"`
}

type FundingTitle struct {
	Title StringValue `json:"title"`
}

type ContributorOrcid struct {
	URI  string `json:"uri,omitempty"`
	Path string `json:"path,omitempty"`
	Host string `json:"host,omitempty"`
}

type FundingContributorAttributes struct {
	Role string `json:"contributor-role,omitempty"`
}

type FundingContributor struct {
	ContributorOrcid *ContributorOrcid             `json:"contributor-orcid,omitempty"`
	CreditName       *StringValue                  `json:"credit-name,omitempty"`
	Email            *StringValue                  `json:"contributor-email,omitempty"`
	Attributes       *FundingContributorAttributes `json:"contributor-attributes,omitempty"`
}

type FundingContributors struct {
	Contributor []FundingContributor `json:"contributor"`
}

// Funding is the funding section payload; richer than the plain affiliation
// payload (contributors, external ids, amount).
type Funding struct {
	PutCode          *int                 `json:"put-code,omitempty"`
	Type             string               `json:"type"`
	Title            FundingTitle         `json:"title"`
	ShortDescription string               `json:"short-description,omitempty"`
	Amount           *Amount              `json:"amount,omitempty"`
	StartDate        *PartialDate         `json:"start-date,omitempty"`
	EndDate          *PartialDate         `json:"end-date,omitempty"`
	ExternalIDs      *ExternalIDs         `json:"external-ids,omitempty"`
	Contributors     *FundingContributors `json:"contributors,omitempty"`
	Organization     Organization         `json:"organization"`
}

type PeerReview struct {
	PutCode               *int         `json:"put-code,omitempty"`
	ReviewerRole          string       `json:"reviewer-role,omitempty"`
	ReviewType            string       `json:"review-type,omitempty"`
	ReviewGroupID         string       `json:"review-group-id"`
	CompletionDate        *PartialDate `json:"review-completion-date,omitempty"`
	ReviewIdentifiers     *ExternalIDs `json:"review-identifiers,omitempty"`
	ConveningOrganization Organization `json:"convening-organization"`
}

type WorkTitle struct {
	Title StringValue `json:"title"`
}

type Work struct {
	PutCode         *int         `json:"put-code,omitempty"`
	Title           WorkTitle    `json:"title"`
	Type            string       `json:"type"`
	PublicationDate *PartialDate `json:"publication-date,omitempty"`
	ExternalIDs     *ExternalIDs `json:"external-ids,omitempty"`
}

// SourceClientID identifies which API client wrote an entry.
type SourceClientID struct {
	Path string `json:"path"`
}

type Source struct {
	SourceClientID *SourceClientID `json:"source-client-id"`
}

// AffiliationSummary is one entry of an employments/educations listing.
type AffiliationSummary struct {
	PutCode int     `json:"put-code"`
	Source  *Source `json:"source"`
}

// SourceClientPath returns the writing client id, or "" when absent.
func (s AffiliationSummary) SourceClientPath() string {
	if s.Source == nil || s.Source.SourceClientID == nil {
		return ""
	}
	return s.Source.SourceClientID.Path
}

type employmentsPage struct {
	Summaries []AffiliationSummary `json:"employment-summary"`
}

type educationsPage struct {
	Summaries []AffiliationSummary `json:"education-summary"`
}
