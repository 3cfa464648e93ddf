package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/isaac-jh/ym-library/internal/shared"
)

// DateLayout is the calendar-date form of displayed dates.
const DateLayout = "2006-01-02"

// BackupRecord is one trackable production item as last confirmed by the server.
type BackupRecord struct {
	ID            RecordID
	EventName     string
	DisplayedDate *time.Time
	Name          string
	Description   string
	Cam           StageStatus
	Master        StageStatus
	Clean         StageStatus
	FinalProduct  StageStatus
	Producers     []string
	CreatedAt     time.Time
	Version       int64 // zero when the server does not report versions
}

// Stage returns the status slot for stage.
func (r BackupRecord) Stage(stage Stage) StageStatus {
	switch stage {
	case StageCam:
		return r.Cam
	case StageMaster:
		return r.Master
	case StageClean:
		return r.Clean
	case StageFinalProduct:
		return r.FinalProduct
	default:
		return StageStatus{}
	}
}

// WithStage returns a copy of r with the slot for stage replaced.
func (r BackupRecord) WithStage(stage Stage, status StageStatus) BackupRecord {
	switch stage {
	case StageCam:
		r.Cam = status
	case StageMaster:
		r.Master = status
	case StageClean:
		r.Clean = status
	case StageFinalProduct:
		r.FinalProduct = status
	}
	return r
}

// DateKey is the grouping key for chronological listings; "" when the record has no displayed date.
func (r BackupRecord) DateKey() string {
	if r.DisplayedDate == nil {
		return ""
	}
	return r.DisplayedDate.Format(DateLayout)
}

// Clone returns a deep copy so callers can hand records out without sharing slices or pointers.
func (r BackupRecord) Clone() BackupRecord {
	out := r
	if r.DisplayedDate != nil {
		d := *r.DisplayedDate
		out.DisplayedDate = &d
	}
	out.Producers = append([]string(nil), r.Producers...)
	for _, s := range Stages {
		st := r.Stage(s)
		if st.VerifiedBy != nil {
			by := *st.VerifiedBy
			st.VerifiedBy = &by
		}
		out = out.WithStage(s, st)
	}
	return out
}

// BackupDraft holds the user-editable fields of a record for create and full update.
type BackupDraft struct {
	EventName     string
	DisplayedDate *time.Time
	Name          string
	Description   string
	// Track selects which stages are tracked on create. Stages absent or false are NotApplicable.
	// Ignored by update: stages never change between tracked and excluded after creation.
	Track map[Stage]bool
	// ProducerIDs replaces the producer set wholesale. Nil leaves producers unchanged on update.
	ProducerIDs []UserID
}

// NewBackupDraft returns a draft with every stage tracked, matching the create form's defaults.
func NewBackupDraft(name string) BackupDraft {
	track := make(map[Stage]bool, len(Stages))
	for _, s := range Stages {
		track[s] = true
	}
	return BackupDraft{Name: name, Track: track}
}

// DraftFrom seeds an edit draft from the synced record.
func DraftFrom(r BackupRecord) BackupDraft {
	d := BackupDraft{
		EventName:   r.EventName,
		Name:        r.Name,
		Description: r.Description,
	}
	if r.DisplayedDate != nil {
		date := *r.DisplayedDate
		d.DisplayedDate = &date
	}
	return d
}

// Validate checks the required fields.
func (d BackupDraft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	return nil
}

// InitialState is the state a stage is created in.
func (d BackupDraft) InitialState(stage Stage) StageState {
	if d.Track[stage] {
		return Incomplete
	}
	return NotApplicable
}

// ParseDate parses a YYYY-MM-DD calendar date. An empty string yields nil.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q must be YYYY-MM-DD", shared.ErrInvalidArgument, s)
	}
	return &t, nil
}

// Session is the logged-in identity acting on the tracker.
type Session struct {
	User        User
	AccessToken string
	TokenType   string
	CreatedAt   time.Time
}

// Actor returns the user id credited as verifier for submissions made in this session.
func (s *Session) Actor() (UserID, error) {
	if s == nil || s.User.ID == 0 {
		return 0, shared.ErrNotAuthenticated
	}
	return s.User.ID, nil
}
