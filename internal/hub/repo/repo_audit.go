package repo

import (
	"context"
	"errors"
	"time"

	"github.com/orcidhub/hub/internal/hub/model"
	"github.com/orcidhub/hub/internal/orcid"
	"github.com/orcidhub/hub/pkg/ctx"
	"github.com/orcidhub/hub/pkg/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AuditRepo persists Member API call rows and authorize-call correlation
// rows. All writes here are best-effort: a failed audit write is logged and
// never surfaces to the caller.
type AuditRepo struct {
	ctx *ctx.Context
}

func NewAuditRepo(c *ctx.Context) *AuditRepo {
	return &AuditRepo{ctx: c}
}

func (r *AuditRepo) db() *gorm.DB {
	return r.ctx.GetDB()
}

// Begin implements orcid.Recorder: writes the pre-call entry and returns its
// row id, or nil when the write failed.
func (r *AuditRepo) Begin(_ context.Context, rec *orcid.CallRecord) any {
	row := model.OrcidApiCall{
		UserID:  rec.UserID,
		Method:  rec.Method,
		URL:     rec.URL,
		Query:   rec.Query,
		Body:    rec.Body,
		PutCode: rec.PutCode,
		SentAt:  rec.SentAt,
	}
	if err := r.db().Create(&row).Error; err != nil {
		log.Errorf("failed to record orcid api call: %v", err)
		return nil
	}
	return row.ID
}

// Finish implements orcid.Recorder: completes the pre-call entry with status,
// response body and latency.
func (r *AuditRepo) Finish(_ context.Context, handle any, rec *orcid.CallRecord) {
	updates := map[string]any{
		"status":     rec.Status,
		"response":   rec.Response,
		"elapsed_ms": rec.ElapsedMS,
	}
	rowID, ok := handle.(uint64)
	if !ok {
		// pre-call write failed; try once to keep at least the completed call
		row := model.OrcidApiCall{
			UserID:    rec.UserID,
			Method:    rec.Method,
			URL:       rec.URL,
			Query:     rec.Query,
			Body:      rec.Body,
			PutCode:   rec.PutCode,
			SentAt:    rec.SentAt,
			Status:    rec.Status,
			Response:  rec.Response,
			ElapsedMS: rec.ElapsedMS,
		}
		if err := r.db().Create(&row).Error; err != nil {
			log.Errorf("failed to record orcid api call result: %v", err)
		}
		return
	}
	if err := r.db().Model(&model.OrcidApiCall{}).Where("id = ?", rowID).Updates(updates).Error; err != nil {
		log.Errorf("failed to complete orcid api call record: %v", err)
	}
}

// RecordAuthorizeCall stores the issued authorization URL keyed by state.
// Scope-downgrade retries reissue URLs under the original state; the first
// row wins.
func (r *AuditRepo) RecordAuthorizeCall(userID, state, authURL string) {
	row := model.OrcidAuthorizeCall{UserID: userID, State: state, AuthURL: authURL}
	err := r.db().Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	if err != nil {
		log.Errorf("failed to record authorize call for state %s: %v", state, err)
	}
}

// FindAuthorizeCall returns the authorize-call row recorded under state.
func (r *AuditRepo) FindAuthorizeCall(state string) (*model.OrcidAuthorizeCall, error) {
	var row model.OrcidAuthorizeCall
	err := r.db().Where("state = ?", state).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

// CompleteAuthorizeCall attaches the token response and latency to the
// authorize-call row matching the callback's state.
func (r *AuditRepo) CompleteAuthorizeCall(state, tokenResponse string, elapsedMS int64, userID string) {
	updates := map[string]any{
		"token_response": tokenResponse,
		"elapsed_ms":     elapsedMS,
	}
	if userID != "" {
		updates["user_id"] = userID
	}
	err := r.db().Model(&model.OrcidAuthorizeCall{}).
		Where("state = ?", state).
		Updates(updates).Error
	if err != nil {
		log.Errorf("failed to complete authorize call for state %s: %v", state, err)
	}
}

// EvictStaleAuthorizeCalls removes abandoned authorize-call rows older than
// the cutoff that never received a token response.
func (r *AuditRepo) EvictStaleAuthorizeCalls(olderThan time.Time) (int64, error) {
	res := r.db().
		Where("created_at < ? AND (token_response IS NULL OR token_response = '')", olderThan).
		Delete(&model.OrcidAuthorizeCall{})
	return res.RowsAffected, res.Error
}
