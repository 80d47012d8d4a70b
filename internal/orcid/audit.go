package orcid

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/orcidhub/hub/pkg/log"
)

// CallRecord captures one outbound Member API call for the audit log.
type CallRecord struct {
	UserID    string
	Method    string
	URL       string
	Query     string
	Body      string
	PutCode   *int
	SentAt    time.Time
	Status    int
	Response  string
	ElapsedMS int64
}

// Recorder persists call records. Begin returns an opaque handle passed back
// to Finish once the call completes; a nil handle means the pre-call write
// failed and Finish should start over.
type Recorder interface {
	Begin(ctx context.Context, rec *CallRecord) any
	Finish(ctx context.Context, handle any, rec *CallRecord)
}

// Auditor wraps every Member API call with audit recording. Recording is
// strictly best-effort: any failure while recording is logged and swallowed,
// and the wrapped call's response and error always reach the caller intact.
type Auditor struct {
	recorder Recorder
}

func NewAuditor(recorder Recorder) *Auditor {
	return &Auditor{recorder: recorder}
}

// Around records rec, invokes the call, then completes the record with
// status, response body and elapsed milliseconds.
func (a *Auditor) Around(ctx context.Context, rec *CallRecord, invoke func() (*resty.Response, error)) (*resty.Response, error) {
	var handle any
	if a != nil && a.recorder != nil {
		func() {
			defer swallowAuditFailure()
			handle = a.recorder.Begin(ctx, rec)
		}()
	}

	start := time.Now()
	resp, err := invoke()
	rec.ElapsedMS = time.Since(start).Milliseconds()
	if resp != nil {
		rec.Status = resp.StatusCode()
		rec.Response = resp.String()
	}

	if a != nil && a.recorder != nil {
		func() {
			defer swallowAuditFailure()
			a.recorder.Finish(ctx, handle, rec)
		}()
	}

	return resp, err
}

func swallowAuditFailure() {
	if r := recover(); r != nil {
		log.Errorf("orcid api audit record failed: %v", r)
	}
}
