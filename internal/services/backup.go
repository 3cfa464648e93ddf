package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/isaac-jh/ym-library/internal/models"
	"github.com/isaac-jh/ym-library/internal/shared"
)

const backupStatusPath = "/backup-status"

// BackupStatusItem is a backup record as the backend serializes it.
type BackupStatusItem struct {
	ID                      int64    `json:"id"`
	EventName               *string  `json:"event_name"`
	DisplayedDate           *string  `json:"displayed_date"`
	Name                    string   `json:"name"`
	Description             *string  `json:"description"`
	Cam                     *bool    `json:"cam"`
	CamChecker              *int64   `json:"cam_checker"`
	CamCheckerName          *string  `json:"cam_checker_name"`
	Master                  *bool    `json:"master"`
	MasterChecker           *int64   `json:"master_checker"`
	MasterCheckerName       *string  `json:"master_checker_name"`
	Clean                   *bool    `json:"clean"`
	CleanChecker            *int64   `json:"clean_checker"`
	CleanCheckerName        *string  `json:"clean_checker_name"`
	FinalProduct            *bool    `json:"final_product"`
	FinalProductChecker     *int64   `json:"final_product_checker"`
	FinalProductCheckerName *string  `json:"final_product_checker_name"`
	CreatedAt               string   `json:"created_at"`
	Producers               []string `json:"producers"`
	Version                 *int64   `json:"version,omitempty"`
}

// stageFields returns pointers to the three wire fields of stage.
func (b *BackupStatusItem) stageFields(stage models.Stage) (state **bool, checker **int64, checkerName **string) {
	switch stage {
	case models.StageCam:
		return &b.Cam, &b.CamChecker, &b.CamCheckerName
	case models.StageMaster:
		return &b.Master, &b.MasterChecker, &b.MasterCheckerName
	case models.StageClean:
		return &b.Clean, &b.CleanChecker, &b.CleanCheckerName
	case models.StageFinalProduct:
		return &b.FinalProduct, &b.FinalProductChecker, &b.FinalProductCheckerName
	}
	return new(*bool), new(*int64), new(*string)
}

// Record converts the wire item to a [models.BackupRecord].
//
// A complete stage without a checker is kept with an unknown verifier, see [BackupStatusItem.UnverifiedStages].
func (b BackupStatusItem) Record() (models.BackupRecord, error) {
	r := models.BackupRecord{
		ID:          models.RecordID(b.ID),
		EventName:   deref(b.EventName),
		Name:        b.Name,
		Description: deref(b.Description),
		Producers:   append([]string{}, b.Producers...),
	}
	if b.Version != nil {
		r.Version = *b.Version
	}

	if b.DisplayedDate != nil && *b.DisplayedDate != "" {
		t, err := parseWireTime(*b.DisplayedDate)
		if err != nil {
			return r, fmt.Errorf("%w: record %d displayed_date: %w", shared.ErrUnrecognizedResponse, b.ID, err)
		}
		date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		r.DisplayedDate = &date
	}
	if b.CreatedAt != "" {
		t, err := parseWireTime(b.CreatedAt)
		if err != nil {
			return r, fmt.Errorf("%w: record %d created_at: %w", shared.ErrUnrecognizedResponse, b.ID, err)
		}
		r.CreatedAt = t
	}

	for _, stage := range models.Stages {
		state, checker, name := b.stageFields(stage)
		status := models.StageStatus{State: models.StateFromWire(*state)}
		if status.State == models.Complete && *checker != nil {
			by := models.UserID(**checker)
			status.VerifiedBy = &by
			status.VerifierName = deref(*name)
		}
		r = r.WithStage(stage, status)
	}
	return r, nil
}

// UnverifiedStages lists the stages reported complete without a checker.
func (b BackupStatusItem) UnverifiedStages() []models.Stage {
	var out []models.Stage
	for _, stage := range models.Stages {
		state, checker, _ := b.stageFields(stage)
		if models.StateFromWire(*state) == models.Complete && *checker == nil {
			out = append(out, stage)
		}
	}
	return out
}

// ItemFromRecord is the inverse of [BackupStatusItem.Record].
func ItemFromRecord(r models.BackupRecord) BackupStatusItem {
	b := BackupStatusItem{
		ID:          int64(r.ID),
		EventName:   optional(r.EventName),
		Name:        r.Name,
		Description: optional(r.Description),
		Producers:   append([]string{}, r.Producers...),
	}
	if r.DisplayedDate != nil {
		d := r.DisplayedDate.Format(models.DateLayout)
		b.DisplayedDate = &d
	}
	if !r.CreatedAt.IsZero() {
		b.CreatedAt = r.CreatedAt.UTC().Format(time.RFC3339)
	}
	if r.Version != 0 {
		v := r.Version
		b.Version = &v
	}

	for _, stage := range models.Stages {
		state, checker, name := b.stageFields(stage)
		status := r.Stage(stage)
		*state = status.State.Wire()
		if status.VerifiedBy != nil {
			id := int64(*status.VerifiedBy)
			*checker = &id
			*name = optional(status.VerifierName)
		}
	}
	return b
}

// BackupCreateRequest is the body of POST /backup-status.
//
// Stage fields are always present: false for tracked stages, null for excluded ones. Checkers start empty.
type BackupCreateRequest struct {
	EventName           *string `json:"event_name"`
	DisplayedDate       *string `json:"displayed_date"`
	Name                string  `json:"name"`
	Description         *string `json:"description"`
	Cam                 *bool   `json:"cam"`
	CamChecker          *int64  `json:"cam_checker"`
	Master              *bool   `json:"master"`
	MasterChecker       *int64  `json:"master_checker"`
	Clean               *bool   `json:"clean"`
	CleanChecker        *int64  `json:"clean_checker"`
	FinalProduct        *bool   `json:"final_product"`
	FinalProductChecker *int64  `json:"final_product_checker"`
	UserIDs             []int64 `json:"user_ids"`
}

// NewCreateRequest builds the create body for draft.
func NewCreateRequest(draft models.BackupDraft) BackupCreateRequest {
	return BackupCreateRequest{
		EventName:     optional(draft.EventName),
		DisplayedDate: wireDate(draft.DisplayedDate),
		Name:          draft.Name,
		Description:   optional(draft.Description),
		Cam:           draft.InitialState(models.StageCam).Wire(),
		Master:        draft.InitialState(models.StageMaster).Wire(),
		Clean:         draft.InitialState(models.StageClean).Wire(),
		FinalProduct:  draft.InitialState(models.StageFinalProduct).Wire(),
		UserIDs:       userIDs(draft.ProducerIDs),
	}
}

// Draft converts the request back into a draft. Used by the development server.
func (b BackupCreateRequest) Draft() (models.BackupDraft, error) {
	date, err := draftDate(b.DisplayedDate)
	if err != nil {
		return models.BackupDraft{}, err
	}
	d := models.BackupDraft{
		EventName:     deref(b.EventName),
		DisplayedDate: date,
		Name:          b.Name,
		Description:   deref(b.Description),
		Track: map[models.Stage]bool{
			models.StageCam:          b.Cam != nil,
			models.StageMaster:       b.Master != nil,
			models.StageClean:        b.Clean != nil,
			models.StageFinalProduct: b.FinalProduct != nil,
		},
		ProducerIDs: fromUserIDs(b.UserIDs),
	}
	if d.ProducerIDs == nil {
		d.ProducerIDs = []models.UserID{}
	}
	return d, nil
}

// BackupUpdateRequest is the body of PUT /backup-status/{id}. Stage fields are never part of it.
//
// A nil UserIDs leaves producers unchanged; a non-nil one replaces them wholesale.
type BackupUpdateRequest struct {
	EventName     *string  `json:"event_name"`
	DisplayedDate *string  `json:"displayed_date"`
	Name          string   `json:"name"`
	Description   *string  `json:"description"`
	UserIDs       *[]int64 `json:"user_ids,omitempty"`
}

// NewUpdateRequest builds the full-update body for draft.
func NewUpdateRequest(draft models.BackupDraft) BackupUpdateRequest {
	req := BackupUpdateRequest{
		EventName:     optional(draft.EventName),
		DisplayedDate: wireDate(draft.DisplayedDate),
		Name:          draft.Name,
		Description:   optional(draft.Description),
	}
	if draft.ProducerIDs != nil {
		ids := userIDs(draft.ProducerIDs)
		req.UserIDs = &ids
	}
	return req
}

// Draft converts the request back into a draft. Used by the development server.
func (b BackupUpdateRequest) Draft() (models.BackupDraft, error) {
	date, err := draftDate(b.DisplayedDate)
	if err != nil {
		return models.BackupDraft{}, err
	}
	d := models.BackupDraft{
		EventName:     deref(b.EventName),
		DisplayedDate: date,
		Name:          b.Name,
		Description:   deref(b.Description),
	}
	if b.UserIDs != nil {
		d.ProducerIDs = fromUserIDs(*b.UserIDs)
		if d.ProducerIDs == nil {
			d.ProducerIDs = []models.UserID{}
		}
	}
	return d, nil
}

// CompletionRequest is the partial stage update sent by PATCH /backup-status/{id}.
type CompletionRequest struct {
	Changes map[models.Stage]models.StageState
	// Actor is credited as the verifier of stages moving to complete.
	Actor models.UserID
	// ExpectedVersion is the version the changes were made against. Zero omits it.
	ExpectedVersion int64
}

// MarshalJSON writes only the changed stages with their checkers.
func (c CompletionRequest) MarshalJSON() ([]byte, error) {
	body := make(map[string]any, 2*len(c.Changes)+1)
	for stage, state := range c.Changes {
		switch state {
		case models.Complete:
			body[string(stage)] = true
			body[stage.CheckerField()] = int64(c.Actor)
		case models.Incomplete:
			body[string(stage)] = false
			body[stage.CheckerField()] = nil
		default:
			return nil, fmt.Errorf("%w: stage %s cannot be set to %s", shared.ErrValidation, stage, state)
		}
	}
	if c.ExpectedVersion != 0 {
		body["expected_version"] = c.ExpectedVersion
	}
	return json.Marshal(body)
}

// UnmarshalJSON reads a partial stage update. A null stage value is rejected since excluded stages cannot be set.
func (c *CompletionRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := CompletionRequest{Changes: map[models.Stage]models.StageState{}}
	for _, stage := range models.Stages {
		value, ok := raw[string(stage)]
		if !ok {
			continue
		}
		var done *bool
		if err := json.Unmarshal(value, &done); err != nil {
			return fmt.Errorf("%w: %s: %w", shared.ErrValidation, stage, err)
		}
		if done == nil {
			return fmt.Errorf("%w: %s cannot be set to null", shared.ErrValidation, stage)
		}
		out.Changes[stage] = models.StateFromWire(done)

		var checker *int64
		if v, ok := raw[stage.CheckerField()]; ok {
			if err := json.Unmarshal(v, &checker); err != nil {
				return fmt.Errorf("%w: %s: %w", shared.ErrValidation, stage.CheckerField(), err)
			}
		}
		if checker != nil {
			if out.Actor != 0 && out.Actor != models.UserID(*checker) {
				return fmt.Errorf("%w: checkers disagree (%d and %d)", shared.ErrValidation, out.Actor, *checker)
			}
			out.Actor = models.UserID(*checker)
		}
	}
	if v, ok := raw["expected_version"]; ok {
		if err := json.Unmarshal(v, &out.ExpectedVersion); err != nil {
			return fmt.Errorf("%w: expected_version: %w", shared.ErrValidation, err)
		}
	}

	*c = out
	return nil
}

// ListBackups fetches every record via GET /backup-status.
//
// A body that is not a JSON array yields an empty list and a warning.
func (c *Client) ListBackups(ctx context.Context) ([]models.BackupRecord, error) {
	query := url.Values{"limit": {strconv.Itoa(c.listLimit)}}

	var raw json.RawMessage
	if err := c.doRequest(ctx, http.MethodGet, backupStatusPath, query, nil, &raw); err != nil {
		return nil, err
	}

	var items []BackupStatusItem
	if t := bytes.TrimSpace(raw); len(t) == 0 || t[0] != '[' {
		c.logger.Warn("unexpected backup list envelope, treating as empty")
		return []models.BackupRecord{}, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: backup list: %w", shared.ErrUnrecognizedResponse, err)
	}

	records := make([]models.BackupRecord, 0, len(items))
	for _, item := range items {
		r, err := c.record(item)
		if err != nil {
			c.logger.Warn("skipping unreadable backup record", "record", item.ID, "error", err)
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

// record converts item, warning about stages the server reports complete without a checker.
func (c *Client) record(item BackupStatusItem) (models.BackupRecord, error) {
	r, err := item.Record()
	if err != nil {
		return r, err
	}
	if stages := item.UnverifiedStages(); len(stages) > 0 {
		c.logger.Warn("backup record has complete stages without a checker", "record", item.ID, "stages", stages)
	}
	return r, nil
}

// GetBackup fetches a single record via GET /backup-status/{id}.
func (c *Client) GetBackup(ctx context.Context, id models.RecordID) (models.BackupRecord, error) {
	var item BackupStatusItem
	if err := c.doRequest(ctx, http.MethodGet, recordPath(id), nil, nil, &item); err != nil {
		return models.BackupRecord{}, err
	}
	return c.record(item)
}

// CreateBackup creates a record via POST /backup-status.
func (c *Client) CreateBackup(ctx context.Context, actor models.UserID, draft models.BackupDraft) (models.BackupRecord, error) {
	if err := draft.Validate(); err != nil {
		return models.BackupRecord{}, err
	}

	var item BackupStatusItem
	if err := c.doRequest(ctx, http.MethodPost, backupStatusPath, actorQuery(actor), NewCreateRequest(draft), &item); err != nil {
		return models.BackupRecord{}, err
	}
	return c.record(item)
}

// UpdateBackup replaces the editable fields of a record via PUT /backup-status/{id}.
func (c *Client) UpdateBackup(ctx context.Context, actor models.UserID, id models.RecordID, draft models.BackupDraft) (models.BackupRecord, error) {
	if err := draft.Validate(); err != nil {
		return models.BackupRecord{}, err
	}

	var item BackupStatusItem
	if err := c.doRequest(ctx, http.MethodPut, recordPath(id), actorQuery(actor), NewUpdateRequest(draft), &item); err != nil {
		return models.BackupRecord{}, err
	}
	return c.record(item)
}

// MarkComplete sends a partial stage update via PATCH /backup-status/{id}.
func (c *Client) MarkComplete(ctx context.Context, id models.RecordID, req CompletionRequest) (models.BackupRecord, error) {
	if len(req.Changes) == 0 {
		return models.BackupRecord{}, shared.ErrEmptyChangeSet
	}

	var item BackupStatusItem
	if err := c.doRequest(ctx, http.MethodPatch, recordPath(id), actorQuery(req.Actor), req, &item); err != nil {
		return models.BackupRecord{}, err
	}
	return c.record(item)
}

// DeleteBackup removes a record via DELETE /backup-status/{id}.
func (c *Client) DeleteBackup(ctx context.Context, actor models.UserID, id models.RecordID) error {
	return c.doRequest(ctx, http.MethodDelete, recordPath(id), actorQuery(actor), nil, nil)
}

func recordPath(id models.RecordID) string {
	return backupStatusPath + "/" + id.String()
}

// parseWireTime accepts the timestamp and date forms seen from the backend.
func parseWireTime(s string) (time.Time, error) {
	layouts := []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05", models.DateLayout}
	var err error
	for _, layout := range layouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

func wireDate(d *time.Time) *string {
	if d == nil {
		return nil
	}
	s := d.Format(models.DateLayout)
	return &s
}

func draftDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := parseWireTime(*s)
	if err != nil {
		return nil, fmt.Errorf("%w: displayed_date %q", shared.ErrValidation, *s)
	}
	date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &date, nil
}

func userIDs(ids []models.UserID) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

func fromUserIDs(ids []int64) []models.UserID {
	if ids == nil {
		return nil
	}
	out := make([]models.UserID, len(ids))
	for i, id := range ids {
		out[i] = models.UserID(id)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
