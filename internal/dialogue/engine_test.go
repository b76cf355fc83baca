package dialogue

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mzampetti/complybot/internal/intent"
	"github.com/mzampetti/complybot/internal/record"
	"github.com/mzampetti/complybot/internal/responses"
)

func newTestSession(t *testing.T) (*Engine, *Session) {
	t.Helper()
	m := NewManager(responses.NewMemoryStore(), time.Minute)
	s := m.Create(context.Background(), "u1")
	e := NewEngine(intent.New(nil), 0, 0)
	return e, s
}

func startPrivacy(t *testing.T, e *Engine, s *Session) {
	t.Helper()
	DeliverAll(s, e.HandleAction(s, "start:privacy", "Privacy Policy"))
}

func confirm(t *testing.T, e *Engine, s *Session) {
	t.Helper()
	DeliverAll(s, e.HandleAction(s, actConfirm, "Confirm"))
}

func lastBotText(t *testing.T, s *Session) string {
	t.Helper()
	m := s.Transcript.LastBot()
	if m == nil {
		t.Fatalf("transcript has no bot message")
	}
	return m.Text
}

func countTagged(s *Session, field string) int {
	n := 0
	for _, r := range s.Recorder.All() {
		if r.Field == field {
			n++
		}
	}
	return n
}

func TestPrivacyFlowConfirmAdvancesOneStep(t *testing.T) {
	e, s := newTestSession(t)
	startPrivacy(t, e, s)

	if got := lastBotText(t, s); !strings.Contains(got, "information shown on the right") {
		t.Fatalf("welcome prompt = %q", got)
	}

	confirm(t, e, s)
	if got := lastBotText(t, s); !strings.Contains(got, `Is your business name "Yngwie's Guitars"?`) {
		t.Fatalf("name prompt = %q", got)
	}

	confirm(t, e, s)
	if got := lastBotText(t, s); !strings.Contains(got, "business email") {
		t.Fatalf("email prompt = %q", got)
	}
	if countTagged(s, "name") != 1 {
		t.Fatalf("confirming the name should log exactly one tagged response, got %d", countTagged(s, "name"))
	}
}

func TestTypedYesActsAsConfirm(t *testing.T) {
	e, s := newTestSession(t)
	startPrivacy(t, e, s)
	confirm(t, e, s) // welcome -> name

	DeliverAll(s, e.HandleText(s, "Yes"))
	if got := lastBotText(t, s); !strings.Contains(got, "business email") {
		t.Fatalf("typed yes should advance to the email step, got %q", got)
	}
	if countTagged(s, "name") != 1 {
		t.Fatalf("typed yes should log the name confirmation")
	}
}

func TestEditSkipsReconfirmation(t *testing.T) {
	e, s := newTestSession(t)
	startPrivacy(t, e, s)
	confirm(t, e, s) // welcome -> name

	DeliverAll(s, e.HandleAction(s, actEdit, "Edit"))
	if got := lastBotText(t, s); !strings.Contains(got, "update your business name") {
		t.Fatalf("edit prompt = %q", got)
	}
	if !s.Editing || s.ActiveField != record.FieldName {
		t.Fatalf("edit sub-state not entered: editing=%v active=%s", s.Editing, s.ActiveField)
	}

	DeliverAll(s, e.HandleText(s, "Blackstar Amps"))
	if s.Record.Name != "Blackstar Amps" {
		t.Fatalf("Name = %q, want %q", s.Record.Name, "Blackstar Amps")
	}
	// The edited field is not re-confirmed; the flow resumes at email.
	if got := lastBotText(t, s); !strings.Contains(got, "business email") {
		t.Fatalf("after edit expected email prompt, got %q", got)
	}
	if s.Editing || s.ActiveField == record.FieldName {
		t.Fatalf("edit sub-state should be cleared")
	}
}

func TestEditCommandNamingFieldWinsOverContext(t *testing.T) {
	e, s := newTestSession(t)
	startPrivacy(t, e, s)
	for i := 0; i < 4; i++ { // welcome, name, email, jurisdiction
		confirm(t, e, s)
	}
	if got := lastBotText(t, s); !strings.Contains(got, "children under the age of 13") {
		t.Fatalf("expected the regulatory question, got %q", got)
	}

	// Asking to change the name mid-question re-enters the name edit state.
	DeliverAll(s, e.HandleText(s, "please change my business name"))
	if got := lastBotText(t, s); !strings.Contains(got, "update your business name") {
		t.Fatalf("edit command should target the named field, got %q", got)
	}

	DeliverAll(s, e.HandleText(s, "Blackstar Amps"))
	if s.Record.Name != "Blackstar Amps" {
		t.Fatalf("Name = %q, want updated value", s.Record.Name)
	}
	if got := lastBotText(t, s); !strings.Contains(got, "business email") {
		t.Fatalf("flow should resume after the edited field, got %q", got)
	}
}

func TestCoppaYesGeneratesWithComplianceSection(t *testing.T) {
	e, s := newTestSession(t)
	startPrivacy(t, e, s)
	for i := 0; i < 4; i++ {
		confirm(t, e, s)
	}

	DeliverAll(s, e.HandleText(s, "yes"))
	if !s.Record.CoppaCompliance {
		t.Fatalf("CoppaCompliance should be set")
	}
	if !s.Generated {
		t.Fatalf("document should be generated")
	}
	if !strings.Contains(s.DocumentText, "CHILDREN'S PRIVACY") {
		t.Fatalf("document should include the compliance section")
	}
	if countTagged(s, string(record.FieldCoppa)) != 1 {
		t.Fatalf("final flag should be logged exactly once under its own tag")
	}
}

func TestCoppaNoThenYesFollowup(t *testing.T) {
	e, s := newTestSession(t)
	startPrivacy(t, e, s)
	for i := 0; i < 4; i++ {
		confirm(t, e, s)
	}

	DeliverAll(s, e.HandleText(s, "no"))
	if s.Generated {
		t.Fatalf("a no answer should ask the follow-up, not generate")
	}
	if got := lastBotText(t, s); !strings.Contains(got, "anyway") {
		t.Fatalf("follow-up question = %q", got)
	}

	DeliverAll(s, e.HandleText(s, "yes"))
	if !s.Record.CoppaCompliance {
		t.Fatalf("opting in on the follow-up should set the flag")
	}
	if !s.Generated || !strings.Contains(s.DocumentText, "CHILDREN'S PRIVACY") {
		t.Fatalf("document should be generated with the compliance section")
	}
}

func TestCoppaNoTwiceOmitsComplianceSection(t *testing.T) {
	e, s := newTestSession(t)
	startPrivacy(t, e, s)
	for i := 0; i < 4; i++ {
		confirm(t, e, s)
	}

	DeliverAll(s, e.HandleText(s, "no"))
	DeliverAll(s, e.HandleText(s, "no"))
	if s.Record.CoppaCompliance {
		t.Fatalf("flag should stay unset")
	}
	if !s.Generated {
		t.Fatalf("document should still be generated")
	}
	if strings.Contains(s.DocumentText, "CHILDREN'S PRIVACY") {
		t.Fatalf("document should not include the compliance section")
	}
}

func TestPanelSaveMatchesTypedPath(t *testing.T) {
	eTyped, typed := newTestSession(t)
	startPrivacy(t, eTyped, typed)
	confirm(t, eTyped, typed)
	DeliverAll(typed, eTyped.HandleAction(typed, actEdit, "Edit"))
	DeliverAll(typed, eTyped.HandleText(typed, "Blackstar Amps"))

	ePanel, panel := newTestSession(t)
	startPrivacy(t, ePanel, panel)
	confirm(t, ePanel, panel)
	DeliverAll(panel, ePanel.HandleAction(panel, actEdit, "Edit"))
	DeliverAll(panel, ePanel.HandlePanelEdit(panel, record.FieldName, "Blackstar Amps"))
	DeliverAll(panel, ePanel.HandlePanelSave(panel))

	if typed.Record.Name != panel.Record.Name {
		t.Fatalf("records diverge: typed=%q panel=%q", typed.Record.Name, panel.Record.Name)
	}
	if typed.StepID != panel.StepID {
		t.Fatalf("positions diverge: typed=%s panel=%s", typed.StepID, panel.StepID)
	}
	if countTagged(typed, "name") != countTagged(panel, "name") {
		t.Fatalf("log entries diverge: typed=%d panel=%d", countTagged(typed, "name"), countTagged(panel, "name"))
	}
}

func TestPanelEditWritesThrough(t *testing.T) {
	e, s := newTestSession(t)
	startPrivacy(t, e, s)
	confirm(t, e, s)

	if events := e.HandlePanelEdit(s, record.FieldName, "Bl"); len(events) != 0 {
		t.Fatalf("panel keystrokes should not produce chat messages")
	}
	if s.Record.Name != "Bl" {
		t.Fatalf("Name = %q, want the partial value written through", s.Record.Name)
	}
	if s.ActiveField != record.FieldName {
		t.Fatalf("ActiveField = %q, want name", s.ActiveField)
	}
}

func TestEditMenuReentersField(t *testing.T) {
	e, s := newTestSession(t)
	startPrivacy(t, e, s)
	for i := 0; i < 4; i++ {
		confirm(t, e, s)
	}
	DeliverAll(s, e.HandleText(s, "yes")) // generate

	DeliverAll(s, e.HandleAction(s, actEditMore, "Edit Something Else"))
	if got := lastBotText(t, s); !strings.Contains(got, "What would you like to edit?") {
		t.Fatalf("edit menu prompt = %q", got)
	}
	menu := s.Transcript.LastActionable()
	if menu == nil || len(menu.Actions) != 4 {
		t.Fatalf("privacy edit menu should offer four fields")
	}

	DeliverAll(s, e.HandleAction(s, actFieldPrefix+"jurisdiction", "Jurisdiction"))
	if got := lastBotText(t, s); !strings.Contains(got, "update your business jurisdiction") {
		t.Fatalf("jurisdiction edit prompt = %q", got)
	}
	DeliverAll(s, e.HandleText(s, "Texas"))
	if s.Record.Jurisdiction != "Texas" {
		t.Fatalf("Jurisdiction = %q, want Texas", s.Record.Jurisdiction)
	}
}

func TestFallbackLeavesStateUntouched(t *testing.T) {
	e, s := newTestSession(t)
	startPrivacy(t, e, s)
	confirm(t, e, s)
	before := s.StepID

	DeliverAll(s, e.HandleText(s, "qwerty asdf"))
	if s.StepID != before {
		t.Fatalf("fallback must not move the flow: %s -> %s", before, s.StepID)
	}
	if got := lastBotText(t, s); got != intent.DefaultReply {
		t.Fatalf("fallback reply = %q", got)
	}
}

func TestRestartResetsRecordKeepsLogs(t *testing.T) {
	e, s := newTestSession(t)
	startPrivacy(t, e, s)
	confirm(t, e, s)
	DeliverAll(s, e.HandleAction(s, actEdit, "Edit"))
	DeliverAll(s, e.HandleText(s, "Blackstar Amps"))

	logged := len(s.Recorder.All())
	transcriptLen := s.Transcript.Len()
	if logged == 0 || transcriptLen == 0 {
		t.Fatalf("precondition: session should have history")
	}

	DeliverAll(s, e.Restart(s))
	if s.Record.Name != record.Seed().Name {
		t.Fatalf("restart should reset the profile, got %q", s.Record.Name)
	}
	if len(s.Recorder.All()) < logged {
		t.Fatalf("response log must never shrink")
	}
	if s.Transcript.Len() <= transcriptLen {
		t.Fatalf("transcript is append-only across restarts")
	}
}

func TestTermsFlowCapturesWebsiteAndServices(t *testing.T) {
	e, s := newTestSession(t)
	DeliverAll(s, e.HandleAction(s, "start:terms", "Terms of Use"))

	if got := lastBotText(t, s); !strings.Contains(got, "business name") {
		t.Fatalf("terms flow should start at the name step, got %q", got)
	}
	confirm(t, e, s)
	if got := lastBotText(t, s); !strings.Contains(got, "website URL") {
		t.Fatalf("expected website capture, got %q", got)
	}

	DeliverAll(s, e.HandleText(s, "blackstaramps.com"))
	if s.Record.Website != "blackstaramps.com" {
		t.Fatalf("Website = %q", s.Record.Website)
	}
	if got := lastBotText(t, s); !strings.Contains(got, "services") {
		t.Fatalf("expected services capture, got %q", got)
	}

	DeliverAll(s, e.HandleText(s, "Amp repair, speaker reconing"))
	if !s.Generated {
		t.Fatalf("terms flow should generate after services")
	}
	if !strings.Contains(s.DocumentText, "TERMS OF USE") {
		t.Fatalf("unexpected document header: %q", s.DocumentText)
	}
	if !strings.Contains(s.DocumentText, "blackstaramps.com") {
		t.Fatalf("document should use the captured website")
	}
}

func TestPanelViewModes(t *testing.T) {
	e, s := newTestSession(t)
	view := s.PanelView()
	if view.Visible {
		t.Fatalf("panel starts hidden")
	}

	startPrivacy(t, e, s)
	confirm(t, e, s)
	view = s.PanelView()
	if !view.Visible || view.Mode != PanelEdit || view.ActiveField != record.FieldName {
		t.Fatalf("unexpected view at name step: %+v", view)
	}

	for i := 0; i < 3; i++ {
		confirm(t, e, s)
	}
	view = s.PanelView()
	if view.Mode != PanelCoppa {
		t.Fatalf("Mode = %q, want coppa selector", view.Mode)
	}

	DeliverAll(s, e.HandleText(s, "yes"))
	view = s.PanelView()
	if view.Mode != PanelDocument || view.Document == "" {
		t.Fatalf("Mode = %q, want document view", view.Mode)
	}
}
