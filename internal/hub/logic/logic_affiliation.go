package logic

import (
	"context"
	"errors"
	"fmt"

	"github.com/orcidhub/hub/internal/hub/conf"
	"github.com/orcidhub/hub/internal/hub/model"
	"github.com/orcidhub/hub/internal/hub/repo"
	"github.com/orcidhub/hub/internal/orcid"
	"github.com/orcidhub/hub/pkg/ctx"
	"github.com/orcidhub/hub/pkg/log"
)

var (
	ErrNoOrcidID              = errors.New("user has no linked ORCID iD")
	ErrNoWriteToken           = errors.New("no token with write permission for this user and organisation")
	ErrTokenRevoked           = errors.New("access token was revoked by the user")
	ErrPutCodeStale           = errors.New("remote entry no longer exists, stored put-code cleared")
	ErrUnsupportedAffiliation = errors.New("unsupported affiliation kind")
)

// AffiliationRecord carries the organisation-supplied fields of one
// employment or education entry. Zero fields fall back to the
// organisation's own registry data.
type AffiliationRecord struct {
	Department          string
	Role                string
	City                string
	Region              string
	Country             string
	DisambiguatedID     string
	DisambiguatedSource string
	StartDate           orcid.PartialDate
	EndDate             orcid.PartialDate
	PutCode             *int
}

type FundingContributorRecord struct {
	OrcidID string
	Name    string
	Email   string
	Role    string
}

type FundingRecord struct {
	Title               string
	Type                string
	ShortDescription    string
	Amount              string
	Currency            string
	City                string
	Region              string
	Country             string
	DisambiguatedID     string
	DisambiguatedSource string
	StartDate           orcid.PartialDate
	EndDate             orcid.PartialDate
	ExternalIDs         []orcid.ExternalID
	Contributors        []FundingContributorRecord
	PutCode             *int
}

type PeerReviewRecord struct {
	ReviewerRole        string
	ReviewType          string
	ReviewGroupID       string
	CompletionDate      orcid.PartialDate
	ReviewIdentifiers   []orcid.ExternalID
	City                string
	Region              string
	Country             string
	DisambiguatedID     string
	DisambiguatedSource string
	PutCode             *int
}

type WorkRecord struct {
	Title           string
	Type            string
	PublicationDate orcid.PartialDate
	ExternalIDs     []orcid.ExternalID
	PutCode         *int
}

// WriteResult reports where an entry landed in the profile.
type WriteResult struct {
	PutCode int
	OrcidID string
	Created bool
}

// AffiliationWriter pushes entries into ORCID profiles on behalf of an
// organisation: put-code dispatch (create vs update), the first-write
// duplicate guard, and token revocation handling.
type AffiliationWriter struct {
	ctx       *ctx.Context
	conf      *conf.Orcid
	tokenRepo *repo.TokenRepo
	auditRepo *repo.AuditRepo
}

func NewAffiliationWriter(c *ctx.Context, cfg *conf.Orcid) *AffiliationWriter {
	return &AffiliationWriter{
		ctx:       c,
		conf:      cfg,
		tokenRepo: repo.NewTokenRepo(c),
		auditRepo: repo.NewAuditRepo(c),
	}
}

func (aw *AffiliationWriter) api(user *model.User, token *model.OrcidToken) *orcid.MemberAPI {
	return orcid.NewMemberAPI(aw.conf.APIBaseURL, token.AccessToken, orcid.NewAuditor(aw.auditRepo)).
		ForUser(user.UserID)
}

// writeToken returns a stored token carrying /activities/update for the pair,
// or ErrNoWriteToken.
func (aw *AffiliationWriter) writeToken(user *model.User, org *model.Organisation) (*model.OrcidToken, error) {
	token, err := aw.tokenRepo.FindBroader(user.UserID, org.OrgID, []string{ScopeActivitiesUpdate})
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNoWriteToken
		}
		return nil, err
	}
	return token, nil
}

// handleWriteError maps registry failures onto hub outcomes. A 401 means the
// user revoked the grant on orcid.org; the stored token is dead and removed.
func (aw *AffiliationWriter) handleWriteError(err error, token *model.OrcidToken) error {
	if orcid.IsUnauthorized(err) {
		if delErr := aw.tokenRepo.Invalidate(token); delErr != nil {
			log.Errorf("failed to drop revoked token %d: %v", token.ID, delErr)
		}
		return fmt.Errorf("%w: %v", ErrTokenRevoked, err)
	}
	return err
}

// CreateOrUpdateAffiliation writes one employment or education entry.
// With a put-code the entry is updated in place; without one a new entry is
// created and the put-code from the Location header returned. On the first
// write for a user (initial set) the target section is listed and the write
// skipped when an entry from this organisation's client already exists, so
// re-running an import never duplicates entries.
func (aw *AffiliationWriter) CreateOrUpdateAffiliation(reqCtx context.Context, org *model.Organisation, user *model.User, kind model.Affiliation, rec *AffiliationRecord, initial bool) (*WriteResult, error) {
	var section string
	switch kind {
	case model.AffiliationEmployment:
		section = orcid.SectionEmployment
	case model.AffiliationEducation:
		section = orcid.SectionEducation
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedAffiliation, kind)
	}
	if user.Orcid == "" {
		return nil, ErrNoOrcidID
	}

	token, err := aw.writeToken(user, org)
	if err != nil {
		return nil, err
	}
	api := aw.api(user, token)

	if initial && rec.PutCode == nil {
		existing, found, err := aw.ownEntryPutCode(reqCtx, api, org, user.Orcid, section)
		if err != nil {
			return nil, aw.handleWriteError(err, token)
		}
		if found {
			log.Debugf("skipping %s write for %s: entry %d already sourced by client %s",
				section, user.Orcid, existing, org.OrcidClientID)
			return &WriteResult{PutCode: existing, OrcidID: user.Orcid, Created: false}, nil
		}
	}

	payload := aw.affiliationPayload(org, rec)
	return aw.write(reqCtx, api, token, user.Orcid, section, rec.PutCode, payload, func() {
		rec.PutCode = nil
	})
}

// CreateOrUpdateFunding writes one funding entry.
func (aw *AffiliationWriter) CreateOrUpdateFunding(reqCtx context.Context, org *model.Organisation, user *model.User, rec *FundingRecord) (*WriteResult, error) {
	if user.Orcid == "" {
		return nil, ErrNoOrcidID
	}
	token, err := aw.writeToken(user, org)
	if err != nil {
		return nil, err
	}

	payload := &orcid.Funding{
		Type:             rec.Type,
		Title:            orcid.FundingTitle{Title: orcid.StringValue{Value: rec.Title}},
		ShortDescription: rec.ShortDescription,
		StartDate:        datePtr(rec.StartDate),
		EndDate:          datePtr(rec.EndDate),
		Organization: aw.organization(org, rec.City, rec.Region, rec.Country,
			rec.DisambiguatedID, rec.DisambiguatedSource),
	}
	if rec.Amount != "" {
		payload.Amount = &orcid.Amount{Value: rec.Amount, CurrencyCode: rec.Currency}
	}
	if len(rec.ExternalIDs) > 0 {
		payload.ExternalIDs = &orcid.ExternalIDs{ExternalID: rec.ExternalIDs}
	}
	if len(rec.Contributors) > 0 {
		contributors := make([]orcid.FundingContributor, 0, len(rec.Contributors))
		for _, c := range rec.Contributors {
			fc := orcid.FundingContributor{}
			if c.OrcidID != "" {
				fc.ContributorOrcid = &orcid.ContributorOrcid{Path: c.OrcidID}
			}
			if c.Name != "" {
				fc.CreditName = &orcid.StringValue{Value: c.Name}
			}
			if c.Email != "" {
				fc.Email = &orcid.StringValue{Value: c.Email}
			}
			if c.Role != "" {
				fc.Attributes = &orcid.FundingContributorAttributes{Role: c.Role}
			}
			contributors = append(contributors, fc)
		}
		payload.Contributors = &orcid.FundingContributors{Contributor: contributors}
	}

	return aw.write(reqCtx, aw.api(user, token), token, user.Orcid, orcid.SectionFunding, rec.PutCode, payload, func() {
		rec.PutCode = nil
	})
}

// CreateOrUpdatePeerReview writes one peer-review entry.
func (aw *AffiliationWriter) CreateOrUpdatePeerReview(reqCtx context.Context, org *model.Organisation, user *model.User, rec *PeerReviewRecord) (*WriteResult, error) {
	if user.Orcid == "" {
		return nil, ErrNoOrcidID
	}
	token, err := aw.writeToken(user, org)
	if err != nil {
		return nil, err
	}

	payload := &orcid.PeerReview{
		ReviewerRole:   rec.ReviewerRole,
		ReviewType:     rec.ReviewType,
		ReviewGroupID:  rec.ReviewGroupID,
		CompletionDate: datePtr(rec.CompletionDate),
		ConveningOrganization: aw.organization(org, rec.City, rec.Region, rec.Country,
			rec.DisambiguatedID, rec.DisambiguatedSource),
	}
	if len(rec.ReviewIdentifiers) > 0 {
		payload.ReviewIdentifiers = &orcid.ExternalIDs{ExternalID: rec.ReviewIdentifiers}
	}

	return aw.write(reqCtx, aw.api(user, token), token, user.Orcid, orcid.SectionPeerReview, rec.PutCode, payload, func() {
		rec.PutCode = nil
	})
}

// CreateOrUpdateWork writes one work entry.
func (aw *AffiliationWriter) CreateOrUpdateWork(reqCtx context.Context, org *model.Organisation, user *model.User, rec *WorkRecord) (*WriteResult, error) {
	if user.Orcid == "" {
		return nil, ErrNoOrcidID
	}
	token, err := aw.writeToken(user, org)
	if err != nil {
		return nil, err
	}

	payload := &orcid.Work{
		Title:           orcid.WorkTitle{Title: orcid.StringValue{Value: rec.Title}},
		Type:            rec.Type,
		PublicationDate: datePtr(rec.PublicationDate),
	}
	if len(rec.ExternalIDs) > 0 {
		payload.ExternalIDs = &orcid.ExternalIDs{ExternalID: rec.ExternalIDs}
	}

	return aw.write(reqCtx, aw.api(user, token), token, user.Orcid, orcid.SectionWork, rec.PutCode, payload, func() {
		rec.PutCode = nil
	})
}

// write dispatches on the put-code: update in place when one is stored,
// create otherwise. A 404 on update means the user deleted the entry on
// orcid.org; clearPutCode drops the stale reference so the next run creates
// a fresh entry.
func (aw *AffiliationWriter) write(reqCtx context.Context, api *orcid.MemberAPI, token *model.OrcidToken, orcidID, section string, putCode *int, payload any, clearPutCode func()) (*WriteResult, error) {
	if putCode != nil {
		if err := setPayloadPutCode(payload, putCode); err != nil {
			return nil, err
		}
		err := api.UpdateActivity(reqCtx, orcidID, section, *putCode, payload)
		if err != nil {
			if orcid.IsNotFound(err) {
				clearPutCode()
				return nil, fmt.Errorf("%w: %v", ErrPutCodeStale, err)
			}
			return nil, aw.handleWriteError(err, token)
		}
		return &WriteResult{PutCode: *putCode, OrcidID: orcidID, Created: false}, nil
	}

	pc, oid, err := api.CreateActivity(reqCtx, orcidID, section, payload)
	if err != nil {
		return nil, aw.handleWriteError(err, token)
	}
	return &WriteResult{PutCode: pc, OrcidID: oid, Created: true}, nil
}

// ownEntryPutCode scans the section listing for an entry written by this
// organisation's API client.
func (aw *AffiliationWriter) ownEntryPutCode(reqCtx context.Context, api *orcid.MemberAPI, org *model.Organisation, orcidID, section string) (int, bool, error) {
	var (
		summaries []orcid.AffiliationSummary
		err       error
	)
	switch section {
	case orcid.SectionEmployment:
		summaries, err = api.ListEmployments(reqCtx, orcidID)
	case orcid.SectionEducation:
		summaries, err = api.ListEducations(reqCtx, orcidID)
	default:
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	for _, s := range summaries {
		if s.SourceClientPath() == org.OrcidClientID {
			return s.PutCode, true, nil
		}
	}
	return 0, false, nil
}

func (aw *AffiliationWriter) affiliationPayload(org *model.Organisation, rec *AffiliationRecord) *orcid.Affiliation {
	return &orcid.Affiliation{
		Department: rec.Department,
		RoleTitle:  rec.Role,
		StartDate:  datePtr(rec.StartDate),
		EndDate:    datePtr(rec.EndDate),
		Organization: aw.organization(org, rec.City, rec.Region, rec.Country,
			rec.DisambiguatedID, rec.DisambiguatedSource),
	}
}

// organization assembles the payload organization block. Record-level fields
// win; the organisation's registry data fills what the record leaves blank.
func (aw *AffiliationWriter) organization(org *model.Organisation, city, region, country, disambiguatedID, disambiguatedSource string) orcid.Organization {
	if city == "" {
		city = org.City
	}
	if region == "" {
		region = org.Region
	}
	if country == "" {
		country = org.Country
	}
	o := orcid.Organization{
		Name:    org.Name,
		Address: orcid.Address{City: city, Region: region, Country: country},
	}
	if disambiguatedID == "" {
		disambiguatedID = org.DisambiguatedID
		disambiguatedSource = org.DisambiguatedSource
	}
	if disambiguatedID != "" {
		o.DisambiguatedOrganization = &orcid.DisambiguatedOrganization{
			Identifier: disambiguatedID,
			Source:     disambiguatedSource,
		}
	}
	return o
}

func setPayloadPutCode(payload any, putCode *int) error {
	switch p := payload.(type) {
	case *orcid.Affiliation:
		p.PutCode = putCode
	case *orcid.Funding:
		p.PutCode = putCode
	case *orcid.PeerReview:
		p.PutCode = putCode
	case *orcid.Work:
		p.PutCode = putCode
	default:
		return fmt.Errorf("unsupported payload type %T", payload)
	}
	return nil
}

func datePtr(d orcid.PartialDate) *orcid.PartialDate {
	if d.IsZero() {
		return nil
	}
	return &d
}
