package orcid

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// DefaultAPIBase is the production Member API v2.0 base URL.
const DefaultAPIBase = "https://api.orcid.org/v2.0"

// Profile sections the hub writes to.
const (
	SectionEmployment = "employment"
	SectionEducation  = "education"
	SectionFunding    = "funding"
	SectionPeerReview = "peer-review"
	SectionWork       = "work"
)

var listPaths = map[string]string{
	SectionEmployment: "employments",
	SectionEducation:  "educations",
	SectionFunding:    "fundings",
	SectionPeerReview: "peer-reviews",
	SectionWork:       "works",
}

// MemberAPI is a Member API v2.0 client bound to one access token. The token
// is a per-client field so concurrent requests for different users never
// share credentials.
type MemberAPI struct {
	base    string
	token   string
	userID  string
	http    *resty.Client
	auditor *Auditor
}

// NewMemberAPI creates a client for the given base URL and bearer token.
// A nil auditor disables audit recording.
func NewMemberAPI(base, accessToken string, auditor *Auditor) *MemberAPI {
	if base == "" {
		base = DefaultAPIBase
	}
	return &MemberAPI{
		base:    strings.TrimSuffix(base, "/"),
		token:   accessToken,
		http:    resty.New().SetTimeout(30 * time.Second),
		auditor: auditor,
	}
}

// ForUser tags subsequent audit records with the hub user id.
func (m *MemberAPI) ForUser(userID string) *MemberAPI {
	m.userID = userID
	return m
}

func (m *MemberAPI) do(ctx context.Context, method, callURL string, body any, putCode *int) (*resty.Response, error) {
	rec := &CallRecord{
		UserID:  m.userID,
		Method:  method,
		URL:     callURL,
		PutCode: putCode,
		SentAt:  time.Now(),
	}
	if u, err := url.Parse(callURL); err == nil {
		rec.Query = u.RawQuery
	}
	if body != nil {
		if b, err := json.Marshal(body); err == nil {
			rec.Body = string(b)
		}
	}

	invoke := func() (*resty.Response, error) {
		req := m.http.R().
			SetContext(ctx).
			SetAuthToken(m.token).
			SetHeader("Accept", "application/json").
			SetHeader("Content-Type", "application/json")
		if body != nil {
			req.SetBody(body)
		}
		return req.Execute(method, callURL)
	}

	resp, err := m.auditor.Around(ctx, rec, invoke)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, callURL)
	}
	return resp, nil
}

// GetRecord fetches the full profile record for an iD.
func (m *MemberAPI) GetRecord(ctx context.Context, orcidID string) (json.RawMessage, error) {
	resp, err := m.do(ctx, http.MethodGet, m.base+"/"+orcidID, nil, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apiErrorFrom(resp)
	}
	return json.RawMessage(resp.Body()), nil
}

// ListEmployments returns the employment summaries of an iD.
func (m *MemberAPI) ListEmployments(ctx context.Context, orcidID string) ([]AffiliationSummary, error) {
	resp, err := m.do(ctx, http.MethodGet, m.base+"/"+orcidID+"/employments", nil, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apiErrorFrom(resp)
	}
	var page employmentsPage
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		return nil, errors.Wrap(err, "decode employments")
	}
	return page.Summaries, nil
}

// ListEducations returns the education summaries of an iD.
func (m *MemberAPI) ListEducations(ctx context.Context, orcidID string) ([]AffiliationSummary, error) {
	resp, err := m.do(ctx, http.MethodGet, m.base+"/"+orcidID+"/educations", nil, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apiErrorFrom(resp)
	}
	var page educationsPage
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		return nil, errors.Wrap(err, "decode educations")
	}
	return page.Summaries, nil
}

// CreateActivity posts a new section entry and returns the put-code and iD
// parsed from the 201 Location header.
func (m *MemberAPI) CreateActivity(ctx context.Context, orcidID, section string, payload any) (int, string, error) {
	if _, ok := listPaths[section]; !ok {
		return 0, "", fmt.Errorf("unsupported profile section: %q", section)
	}
	resp, err := m.do(ctx, http.MethodPost, m.base+"/"+orcidID+"/"+section, payload, nil)
	if err != nil {
		return 0, "", err
	}
	if resp.StatusCode() != http.StatusCreated {
		return 0, "", apiErrorFrom(resp)
	}
	return parseLocation(resp.Header().Get("Location"))
}

// UpdateActivity puts an existing section entry identified by put-code.
func (m *MemberAPI) UpdateActivity(ctx context.Context, orcidID, section string, putCode int, payload any) error {
	if _, ok := listPaths[section]; !ok {
		return fmt.Errorf("unsupported profile section: %q", section)
	}
	callURL := fmt.Sprintf("%s/%s/%s/%d", m.base, orcidID, section, putCode)
	resp, err := m.do(ctx, http.MethodPut, callURL, payload, &putCode)
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return apiErrorFrom(resp)
	}
	return nil
}

// parseLocation extracts (put-code, orcid iD) from a create response Location
// header of the form .../{orcid}/{section}/{put_code}.
func parseLocation(location string) (int, string, error) {
	if location == "" {
		return 0, "", errors.New("create response carries no Location header")
	}
	u, err := url.Parse(location)
	if err != nil {
		return 0, "", errors.Wrap(err, "malformed Location header")
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 3 {
		return 0, "", fmt.Errorf("malformed Location header: %q", location)
	}
	putCode, err := strconv.Atoi(segments[len(segments)-1])
	if err != nil {
		return 0, "", fmt.Errorf("malformed put-code in Location header: %q", location)
	}
	return putCode, segments[len(segments)-3], nil
}
