package operations

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"tradejournal/internal/importer"
	"tradejournal/pkg/contracts/domain"
)

// Step is the position of an import session in its linear state machine.
type Step string

const (
	StepSourceSelection Step = "source_selection"
	StepUpload          Step = "upload"
	StepMapping         Step = "mapping"
	StepImporting       Step = "importing"
	StepComplete        Step = "complete"
)

// ErrInvalidTransition is returned when a session operation is attempted
// from the wrong step. The machine is linear; the only backward move is
// an explicit user reset.
var ErrInvalidTransition = errors.New("invalid import session transition")

// ErrMappingIncomplete is returned by BeginImport when a required field
// has no column assigned.
var ErrMappingIncomplete = errors.New("required fields unmapped")

// SessionView is the serializable state of an import session. Snapshot
// returns a copy so callers can read and marshal it while the session
// keeps mutating.
type SessionView struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	Step      Step                   `json:"step"`
	Source    domain.DataSource      `json:"source,omitempty"`
	AccountID string                 `json:"account_id,omitempty"`
	Timezone  string                 `json:"timezone,omitempty"`
	Mode      importer.ImportMode    `json:"mode,omitempty"`
	Mapping   importer.ColumnMapping `json:"mapping,omitempty"`
	Filename  string                 `json:"filename,omitempty"`

	// Parsed is the uploaded file's rows and headers; discarded on reset.
	Parsed *importer.ParsedFile `json:"-"`

	Stats   *domain.ImportStats `json:"stats,omitempty"`
	Message string              `json:"message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ImportSession holds the mutable state of one import run, guarded by a
// mutex because HTTP handlers and the import goroutine both touch it.
type ImportSession struct {
	mu sync.RWMutex
	SessionView
}

// NewImportSession creates a session at the source-selection step.
func NewImportSession(id, userID string) *ImportSession {
	now := time.Now()
	return &ImportSession{
		SessionView: SessionView{
			ID:        id,
			UserID:    userID,
			Step:      StepSourceSelection,
			Mode:      importer.ModeAppend,
			Mapping:   make(importer.ColumnMapping),
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// Configure sets the source, account, timezone and mode and advances to
// the upload step. Allowed only from source_selection.
func (s *ImportSession) Configure(source domain.DataSource, accountID, timezone string, mode importer.ImportMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Step != StepSourceSelection {
		return fmt.Errorf("%w: configure from %q", ErrInvalidTransition, s.Step)
	}
	s.Source = source
	s.AccountID = accountID
	s.Timezone = timezone
	s.Mode = mode
	s.Step = StepUpload
	s.touch()
	return nil
}

// AttachFile stores the parsed upload and its auto-detected mapping and
// advances to the mapping step. A re-upload from the mapping step is
// allowed so the user can swap files without resetting.
func (s *ImportSession) AttachFile(filename string, parsed *importer.ParsedFile, mapping importer.ColumnMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Step != StepUpload && s.Step != StepMapping {
		return fmt.Errorf("%w: upload from %q", ErrInvalidTransition, s.Step)
	}
	s.Filename = filename
	s.Parsed = parsed
	s.Mapping = mapping
	s.Step = StepMapping
	s.touch()
	return nil
}

// SetMapping applies user overrides to the column mapping. Allowed only
// on the mapping step.
func (s *ImportSession) SetMapping(overrides importer.ColumnMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Step != StepMapping {
		return fmt.Errorf("%w: remap from %q", ErrInvalidTransition, s.Step)
	}
	for field, header := range overrides {
		s.Mapping[field] = header
	}
	s.touch()
	return nil
}

// BeginImport moves mapping → importing after checking the required
// fields are mapped and a file is attached.
func (s *ImportSession) BeginImport() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Step != StepMapping {
		return fmt.Errorf("%w: run from %q", ErrInvalidTransition, s.Step)
	}
	if s.Parsed == nil || len(s.Parsed.Rows) == 0 {
		return fmt.Errorf("%w: no file attached", ErrInvalidTransition)
	}
	if missing := s.Mapping.MissingRequired(); len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrMappingIncomplete, missing)
	}
	s.Step = StepImporting
	s.Message = ""
	s.touch()
	return nil
}

// CompleteImport records the final stats; importing is terminal on
// success.
func (s *ImportSession) CompleteImport(stats domain.ImportStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Stats = &stats
	s.Step = StepComplete
	s.touch()
}

// FailImport returns the session to the mapping step with an error
// message. The run is abandoned; trades persisted before the failure
// stay persisted, no rollback is attempted.
func (s *ImportSession) FailImport(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Step = StepMapping
	if err != nil {
		s.Message = err.Error()
	}
	s.touch()
}

// Reset is the only backward transition: it returns to source_selection
// and clears all session state.
func (s *ImportSession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Step = StepSourceSelection
	s.Source = ""
	s.AccountID = ""
	s.Timezone = ""
	s.Mode = importer.ModeAppend
	s.Mapping = make(importer.ColumnMapping)
	s.Filename = ""
	s.Parsed = nil
	s.Stats = nil
	s.Message = ""
	s.touch()
}

// Snapshot returns a copy safe to serialize while the import goroutine
// keeps mutating the session.
func (s *ImportSession) Snapshot() SessionView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	view := s.SessionView
	view.Mapping = s.Mapping.Clone()
	return view
}

// CurrentStep returns the step under the read lock.
func (s *ImportSession) CurrentStep() Step {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Step
}

func (s *ImportSession) touch() {
	s.UpdatedAt = time.Now()
}
