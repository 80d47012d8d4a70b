package logic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/orcidhub/hub/internal/hub/model"
	"github.com/orcidhub/hub/internal/hub/repo"
	"github.com/orcidhub/hub/internal/orcid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrcidID = "0000-0001-8228-7153"

func TestCreateAffiliationFirstWrite(t *testing.T) {
	var posted orcid.Affiliation
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/"+testOrcidID+"/employments":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"employment-summary":[]}`))
		case r.Method == http.MethodPost && r.URL.Path == "/"+testOrcidID+"/employment":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
			w.Header().Set("Location", "https://api.orcid.org/v2.0/"+testOrcidID+"/employment/900")
			w.WriteHeader(http.StatusCreated)
		default:
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestCtx(t)
	org := seedOrg(t, c, true)
	user := seedUser(t, c, testOrcidID)
	seedWriteToken(t, c, user.UserID, org.OrgID)
	aw := NewAffiliationWriter(c, orcidConf("unused"))
	aw.conf.APIBaseURL = srv.URL

	rec := &AffiliationRecord{
		Department: "School of Biology",
		Role:       "Lecturer",
		StartDate:  orcid.PartialDate{Year: 2020, Month: 2},
	}
	res, err := aw.CreateOrUpdateAffiliation(context.Background(), org, user, model.AffiliationEmployment, rec, true)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, 900, res.PutCode)
	assert.Equal(t, testOrcidID, res.OrcidID)

	// the payload fell back to the organisation's registry data
	assert.Equal(t, "School of Biology", posted.Department)
	assert.Equal(t, "Test University", posted.Organization.Name)
	assert.Equal(t, "Wellington", posted.Organization.Address.City)
	assert.Equal(t, "NZ", posted.Organization.Address.Country)
}

func TestCreateAffiliationSkipsExistingOwnEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			t.Error("first write must not create a second entry for the same client")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"employment-summary":[
			{"put-code":321,"source":{"source-client-id":{"path":"APP-XYZ"}}}
		]}`))
	}))
	defer srv.Close()

	c := newTestCtx(t)
	org := seedOrg(t, c, true)
	user := seedUser(t, c, testOrcidID)
	seedWriteToken(t, c, user.UserID, org.OrgID)
	aw := NewAffiliationWriter(c, orcidConf("unused"))
	aw.conf.APIBaseURL = srv.URL

	res, err := aw.CreateOrUpdateAffiliation(context.Background(), org, user, model.AffiliationEmployment, &AffiliationRecord{}, true)
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, 321, res.PutCode)
}

func TestCreateAffiliationIgnoresForeignEntries(t *testing.T) {
	created := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			created = true
			w.Header().Set("Location", "https://api.orcid.org/v2.0/"+testOrcidID+"/employment/901")
			w.WriteHeader(http.StatusCreated)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"employment-summary":[
			{"put-code":77,"source":{"source-client-id":{"path":"APP-OTHER"}}}
		]}`))
	}))
	defer srv.Close()

	c := newTestCtx(t)
	org := seedOrg(t, c, true)
	user := seedUser(t, c, testOrcidID)
	seedWriteToken(t, c, user.UserID, org.OrgID)
	aw := NewAffiliationWriter(c, orcidConf("unused"))
	aw.conf.APIBaseURL = srv.URL

	res, err := aw.CreateOrUpdateAffiliation(context.Background(), org, user, model.AffiliationEmployment, &AffiliationRecord{}, true)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, res.Created)
	assert.Equal(t, 901, res.PutCode)
}

func TestUpdateAffiliationStalePutCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"user-message":"Not found."}`))
	}))
	defer srv.Close()

	c := newTestCtx(t)
	org := seedOrg(t, c, true)
	user := seedUser(t, c, testOrcidID)
	seedWriteToken(t, c, user.UserID, org.OrgID)
	aw := NewAffiliationWriter(c, orcidConf("unused"))
	aw.conf.APIBaseURL = srv.URL

	putCode := 555
	rec := &AffiliationRecord{PutCode: &putCode}
	_, err := aw.CreateOrUpdateAffiliation(context.Background(), org, user, model.AffiliationEmployment, rec, false)
	assert.ErrorIs(t, err, ErrPutCodeStale)
	// the stale reference is gone so the next run creates afresh
	assert.Nil(t, rec.PutCode)
}

func TestCreateAffiliationRevokedTokenIsDropped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestCtx(t)
	org := seedOrg(t, c, true)
	user := seedUser(t, c, testOrcidID)
	seedWriteToken(t, c, user.UserID, org.OrgID)
	aw := NewAffiliationWriter(c, orcidConf("unused"))
	aw.conf.APIBaseURL = srv.URL

	_, err := aw.CreateOrUpdateAffiliation(context.Background(), org, user, model.AffiliationEmployment, &AffiliationRecord{}, false)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	_, err = repo.NewTokenRepo(c).FindBroader(user.UserID, org.OrgID, []string{ScopeActivitiesUpdate})
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestCreateAffiliationRequiresWriteToken(t *testing.T) {
	c := newTestCtx(t)
	org := seedOrg(t, c, true)
	user := seedUser(t, c, testOrcidID)
	aw := NewAffiliationWriter(c, orcidConf("unused"))

	_, err := aw.CreateOrUpdateAffiliation(context.Background(), org, user, model.AffiliationEmployment, &AffiliationRecord{}, false)
	assert.ErrorIs(t, err, ErrNoWriteToken)
}

func TestCreateAffiliationRequiresOrcidID(t *testing.T) {
	c := newTestCtx(t)
	org := seedOrg(t, c, true)
	user := seedUser(t, c, "")
	aw := NewAffiliationWriter(c, orcidConf("unused"))

	_, err := aw.CreateOrUpdateAffiliation(context.Background(), org, user, model.AffiliationEmployment, &AffiliationRecord{}, false)
	assert.ErrorIs(t, err, ErrNoOrcidID)
}

func TestCreateAffiliationUnsupportedKind(t *testing.T) {
	c := newTestCtx(t)
	org := seedOrg(t, c, true)
	user := seedUser(t, c, testOrcidID)
	aw := NewAffiliationWriter(c, orcidConf("unused"))

	_, err := aw.CreateOrUpdateAffiliation(context.Background(), org, user, 0, &AffiliationRecord{}, false)
	assert.ErrorIs(t, err, ErrUnsupportedAffiliation)
}

func TestCreateFunding(t *testing.T) {
	var posted orcid.Funding
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/"+testOrcidID+"/funding", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
		w.Header().Set("Location", "https://api.orcid.org/v2.0/"+testOrcidID+"/funding/42")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newTestCtx(t)
	org := seedOrg(t, c, true)
	user := seedUser(t, c, testOrcidID)
	seedWriteToken(t, c, user.UserID, org.OrgID)
	aw := NewAffiliationWriter(c, orcidConf("unused"))
	aw.conf.APIBaseURL = srv.URL

	res, err := aw.CreateOrUpdateFunding(context.Background(), org, user, &FundingRecord{
		Title:    "Marsden Grant",
		Type:     "grant",
		Amount:   "100000",
		Currency: "NZD",
		ExternalIDs: []orcid.ExternalID{
			{Type: "grant_number", Value: "MFP-001", Relationship: "self"},
		},
		Contributors: []FundingContributorRecord{
			{OrcidID: testOrcidID, Name: "Jane Doe", Role: "lead"},
		},
	})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, 42, res.PutCode)

	assert.Equal(t, "Marsden Grant", posted.Title.Title.Value)
	require.NotNil(t, posted.Amount)
	assert.Equal(t, "NZD", posted.Amount.CurrencyCode)
	require.NotNil(t, posted.Contributors)
	require.Len(t, posted.Contributors.Contributor, 1)
	assert.Equal(t, "lead", posted.Contributors.Contributor[0].Attributes.Role)
}

func TestCreateWork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/"+testOrcidID+"/work", r.URL.Path)
		w.Header().Set("Location", "https://api.orcid.org/v2.0/"+testOrcidID+"/work/7")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newTestCtx(t)
	org := seedOrg(t, c, true)
	user := seedUser(t, c, testOrcidID)
	seedWriteToken(t, c, user.UserID, org.OrgID)
	aw := NewAffiliationWriter(c, orcidConf("unused"))
	aw.conf.APIBaseURL = srv.URL

	res, err := aw.CreateOrUpdateWork(context.Background(), org, user, &WorkRecord{
		Title: "On Hub Architecture",
		Type:  "journal-article",
		ExternalIDs: []orcid.ExternalID{
			{Type: "doi", Value: "10.1000/hub.1", Relationship: "self"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 7, res.PutCode)
}
