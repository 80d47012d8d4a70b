package orcid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateActivityParsesLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/0000-1111-2222-3333/employment", r.URL.Path)
		require.Equal(t, "Bearer token-abc", r.Header.Get("Authorization"))
		w.Header().Set("Location", srvURLPlaceholder+"/0000-1111-2222-3333/employment/555")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	api := NewMemberAPI(srv.URL, "token-abc", nil)
	putCode, orcidID, err := api.CreateActivity(context.Background(), "0000-1111-2222-3333", SectionEmployment, &Affiliation{
		Organization: Organization{Name: "Test University"},
	})
	require.NoError(t, err)
	assert.Equal(t, 555, putCode)
	assert.Equal(t, "0000-1111-2222-3333", orcidID)
}

const srvURLPlaceholder = "https://api.orcid.org/v2.0"

func TestCreateActivityUnsupportedSection(t *testing.T) {
	api := NewMemberAPI("http://127.0.0.1:0", "t", nil)
	_, _, err := api.CreateActivity(context.Background(), "0000-1111-2222-3333", "bogus", nil)
	assert.Error(t, err)
}

func TestUpdateActivityNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/0000-1111-2222-3333/employment/555", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"user-message":"The claim was not found."}`))
	}))
	defer srv.Close()

	api := NewMemberAPI(srv.URL, "t", nil)
	err := api.UpdateActivity(context.Background(), "0000-1111-2222-3333", SectionEmployment, 555, &Affiliation{})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "The claim was not found.", apiErr.UserMessage)
}

func TestListEmploymentsUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	api := NewMemberAPI(srv.URL, "revoked", nil)
	_, err := api.ListEmployments(context.Background(), "0000-1111-2222-3333")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.False(t, IsNotFound(err))
}

func TestListEmploymentsSourceClientPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"employment-summary":[
			{"put-code":1,"source":{"source-client-id":{"path":"APP-XYZ"}}},
			{"put-code":2,"source":null}
		]}`))
	}))
	defer srv.Close()

	api := NewMemberAPI(srv.URL, "t", nil)
	summaries, err := api.ListEmployments(context.Background(), "0000-1111-2222-3333")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "APP-XYZ", summaries[0].SourceClientPath())
	assert.Equal(t, "", summaries[1].SourceClientPath())
}

// panicRecorder blows up on every audit write.
type panicRecorder struct{}

func (panicRecorder) Begin(context.Context, *CallRecord) any   { panic("audit store down") }
func (panicRecorder) Finish(context.Context, any, *CallRecord) { panic("audit store down") }

func TestAuditFailureNeverBreaksCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"employment-summary":[]}`))
	}))
	defer srv.Close()

	api := NewMemberAPI(srv.URL, "t", NewAuditor(panicRecorder{}))
	summaries, err := api.ListEmployments(context.Background(), "0000-1111-2222-3333")
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

// captureRecorder keeps the records it was handed.
type captureRecorder struct {
	begun    []*CallRecord
	finished []*CallRecord
}

func (c *captureRecorder) Begin(_ context.Context, rec *CallRecord) any {
	c.begun = append(c.begun, rec)
	return len(c.begun)
}

func (c *captureRecorder) Finish(_ context.Context, _ any, rec *CallRecord) {
	c.finished = append(c.finished, rec)
}

func TestAuditRecordsStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`bad payload`))
	}))
	defer srv.Close()

	rec := &captureRecorder{}
	api := NewMemberAPI(srv.URL, "t", NewAuditor(rec)).ForUser("u-1")
	_, _, err := api.CreateActivity(context.Background(), "0000-1111-2222-3333", SectionEmployment, &Affiliation{})
	require.Error(t, err)

	require.Len(t, rec.finished, 1)
	got := rec.finished[0]
	assert.Equal(t, "u-1", got.UserID)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, http.StatusBadRequest, got.Status)
	assert.Equal(t, "bad payload", got.Response)
}
