package dialogue

import (
	"sync"
	"time"

	"github.com/mzampetti/complybot/internal/chatlog"
	"github.com/mzampetti/complybot/internal/record"
	"github.com/mzampetti/complybot/internal/responses"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// Session holds all per-conversation state. All mutation happens inside
// Do so timer deliveries and socket reads interleave safely.
type Session struct {
	ID        string
	UserID    string
	StartedAt time.Time

	mu             sync.Mutex
	status         Status
	lastActivityAt time.Time

	Record     record.Business
	Transcript *chatlog.Transcript
	Recorder   *responses.Recorder

	Flow          *Flow
	StepID        StepID
	Editing       bool
	CoppaFollowup bool

	PanelVisible bool
	ActiveField  record.Field

	Generating   bool
	Generated    bool
	DocumentText string
}

// Do runs fn holding the session lock.
func (s *Session) Do(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivityAt
}

func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivityAt = time.Now()
	s.mu.Unlock()
}

func (s *Session) end() {
	s.mu.Lock()
	s.status = StatusEnded
	s.mu.Unlock()
}

// PanelMode names what the side panel renders.
type PanelMode string

const (
	PanelSummary  PanelMode = "summary"
	PanelEdit     PanelMode = "edit"
	PanelCoppa    PanelMode = "coppa"
	PanelLoading  PanelMode = "loading"
	PanelDocument PanelMode = "document"
)

// PanelView is the panel state pushed to the client.
type PanelView struct {
	Visible     bool            `json:"visible"`
	Mode        PanelMode       `json:"mode"`
	ActiveField record.Field    `json:"activeField,omitempty"`
	ActiveValue string          `json:"activeValue,omitempty"`
	Record      record.Business `json:"record"`
	Document    string          `json:"document,omitempty"`
}

// PanelView renders the current panel state. A failure while rendering any
// specialized view falls back to the read-only summary instead of taking
// the session down; the conversation state is untouched either way.
// Callers must hold the session via Do.
func (s *Session) PanelView() (view PanelView) {
	defer func() {
		if r := recover(); r != nil {
			view = PanelView{Visible: s.PanelVisible, Mode: PanelSummary, Record: s.Record}
		}
	}()

	view = PanelView{Visible: s.PanelVisible, Record: s.Record}
	switch {
	case s.Generating:
		view.Mode = PanelLoading
	case s.Generated && !s.Editing && s.ActiveField == "":
		view.Mode = PanelDocument
		view.Document = s.DocumentText
	case s.ActiveField == record.FieldCoppa:
		view.Mode = PanelCoppa
		view.ActiveField = s.ActiveField
		view.ActiveValue = s.Record.Get(record.FieldCoppa)
	case s.ActiveField != "":
		view.Mode = PanelEdit
		view.ActiveField = s.ActiveField
		view.ActiveValue = s.Record.Get(s.ActiveField)
	default:
		view.Mode = PanelSummary
	}
	return view
}
