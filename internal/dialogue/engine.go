package dialogue

import (
	"strings"
	"time"

	"github.com/mzampetti/complybot/internal/chatlog"
	"github.com/mzampetti/complybot/internal/document"
	"github.com/mzampetti/complybot/internal/intent"
	"github.com/mzampetti/complybot/internal/record"
)

// Action intent identifiers carried on chat buttons. Buttons are data, not
// callbacks, so a transcript replays identically over any transport.
const (
	actConfirm   = "confirm"
	actEdit      = "edit"
	actInfo      = "info"
	actCoppaYes  = "coppa_yes"
	actCoppaNo   = "coppa_no"
	actEditMore  = "edit_more"
	actLooksGood = "looks_good"
	actWhyDocs   = "why_docs"

	actStartPrefix = "start:"
	actFieldPrefix = "field:"
)

// DocumentEvent announces an assembled document to the client.
type DocumentEvent struct {
	Doc  document.Type
	Text string
}

// Event is one scheduled piece of engine output. Delay simulates typing;
// the message joins the transcript only when the event is delivered, so
// the visible log always matches what the client saw.
type Event struct {
	Delay    time.Duration
	Message  *chatlog.Message
	Document *DocumentEvent
	mutate   func(*Session)
}

// Deliver applies one event to the session. Callers must hold the session
// via Do and deliver events in Delay order.
func Deliver(s *Session, ev Event) {
	if ev.mutate != nil {
		ev.mutate(s)
	}
	if ev.Message != nil {
		s.Transcript.Append(*ev.Message)
	}
}

// DeliverAll applies a whole batch immediately, ignoring delays. Used by
// synchronous callers and tests.
func DeliverAll(s *Session, events []Event) {
	for _, ev := range events {
		Deliver(s, ev)
	}
}

// Engine advances sessions through the flow tables. It is stateless across
// sessions; all conversation state lives on the Session.
type Engine struct {
	interp        *intent.Interpreter
	flows         map[string]*Flow
	typingDelay   time.Duration
	generateDelay time.Duration
	onIntent      func(resolution string)
}

func NewEngine(interp *intent.Interpreter, typingDelay, generateDelay time.Duration) *Engine {
	if interp == nil {
		interp = intent.New(nil)
	}
	return &Engine{
		interp:        interp,
		flows:         Flows(),
		typingDelay:   typingDelay,
		generateDelay: generateDelay,
	}
}

// SetIntentHook registers an observer for resolution tags, for metrics.
func (e *Engine) SetIntentHook(fn func(resolution string)) {
	e.onIntent = fn
}

type batch struct {
	e      *Engine
	delay  time.Duration
	events []Event
}

func (e *Engine) newBatch() *batch {
	return &batch{e: e}
}

func (b *batch) say(text string, actions ...chatlog.Action) {
	b.delay += b.e.typingDelay
	b.events = append(b.events, Event{
		Delay: b.delay,
		Message: &chatlog.Message{
			Text:    text,
			Sender:  chatlog.SenderBot,
			Actions: actions,
			At:      time.Now().UTC(),
		},
	})
}

func (b *batch) add(ev Event) {
	b.events = append(b.events, ev)
}

// Greet opens a fresh conversation with the document picker.
func (e *Engine) Greet(s *Session) []Event {
	b := e.newBatch()
	e.greet(s, b)
	return b.events
}

func (e *Engine) greet(_ *Session, b *batch) {
	text, ok := e.interp.Replies().Lookup("COMPLIANCE_WELCOME")
	if !ok {
		text = "Hello! I can help you create the legal documents your business needs."
	}
	b.say(text,
		chatlog.Action{Label: "Privacy Policy", Intent: actStartPrefix + FlowPrivacy, Style: chatlog.StylePrimary},
		chatlog.Action{Label: "Terms of Use", Intent: actStartPrefix + FlowTerms, Style: chatlog.StylePrimary},
		chatlog.Action{Label: "Why do I need these?", Intent: actWhyDocs, Style: chatlog.StyleSecondary},
	)
}

// Restart resets the profile and conversation position and greets again.
// The transcript and response log are append-only and survive the reset.
func (e *Engine) Restart(s *Session) []Event {
	s.Record = record.Seed()
	s.Flow = nil
	s.StepID = ""
	s.Editing = false
	s.CoppaFollowup = false
	s.Generating = false
	s.Generated = false
	s.DocumentText = ""
	s.ActiveField = ""
	s.PanelVisible = false

	b := e.newBatch()
	e.greet(s, b)
	return b.events
}

// HandleText resolves free text against the transcript context, appends the
// user message and dispatches the resolved intent.
func (e *Engine) HandleText(s *Session, text string) []Event {
	it := e.interp.Resolve(text, s.Transcript.LastBot(), s.Transcript.LastActionable())
	s.Transcript.AppendUser(text)
	if e.onIntent != nil {
		e.onIntent(it.Resolution)
	}
	e.auditResolution(s, it, text)

	b := e.newBatch()
	switch it.Kind {
	case intent.KindAction:
		e.apply(s, b, it.ActionID)
	case intent.KindFieldValue:
		e.completeValue(s, b, it.Field, it.Value)
	case intent.KindYes:
		e.coppaAnswer(s, b, true, it.Value)
	case intent.KindNo:
		e.coppaAnswer(s, b, false, it.Value)
	case intent.KindEditField:
		e.enterEditField(s, b, it.Field)
	case intent.KindEditMenu:
		if s.Flow != nil && s.Flow.Name == it.Flow {
			e.editMenu(s, b)
		} else {
			e.startFlow(s, b, it.Flow)
		}
	case intent.KindOpenPanel:
		s.PanelVisible = true
		b.say("Opening the canvas for you.")
	case intent.KindClosePanel:
		s.PanelVisible = false
		b.say("Closing the canvas.")
	case intent.KindStartFlow:
		e.startFlow(s, b, it.Flow)
	case intent.KindReply:
		b.say(it.Reply)
	}
	return b.events
}

// HandleAction dispatches a button click. The label joins the transcript
// as the user's side of the exchange.
func (e *Engine) HandleAction(s *Session, actionID, label string) []Event {
	if label != "" {
		s.Transcript.AppendUser(label)
	}
	b := e.newBatch()
	e.apply(s, b, actionID)
	return b.events
}

// HandlePanelEdit writes a panel keystroke straight through to the record.
// No chat message results; the panel and chat stay two views of one value.
func (e *Engine) HandlePanelEdit(s *Session, field record.Field, value string) []Event {
	if field == "" {
		return nil
	}
	s.ActiveField = field
	s.Record.Set(field, value)
	return nil
}

// HandlePanelSave finishes the active panel edit through the same path a
// typed value takes, so both produce the same log entry and transition.
func (e *Engine) HandlePanelSave(s *Session) []Event {
	if s.ActiveField == "" {
		return nil
	}
	field := s.ActiveField
	b := e.newBatch()
	e.completeValue(s, b, field, s.Record.Get(field))
	return b.events
}

// auditResolution logs how free text was matched to an action, alongside
// the field answers proper.
func (e *Engine) auditResolution(s *Session, it intent.Intent, text string) {
	switch it.Resolution {
	case "exact_match", "partial_match", "synonym_yes", "synonym_no",
		"generate_keyword", "edit_keyword", "edit_command":
	default:
		return
	}
	question := ""
	if m := s.Transcript.LastActionable(); m != nil {
		question = m.Text
	} else if m := s.Transcript.LastBot(); m != nil {
		question = m.Text
	}
	s.Recorder.Record(question, text, it.Resolution)
}

func (e *Engine) apply(s *Session, b *batch, actionID string) {
	switch {
	case actionID == actConfirm:
		e.confirmCurrent(s, b)
	case actionID == actEdit:
		e.editCurrent(s, b)
	case actionID == actInfo:
		e.infoCurrent(s, b)
	case actionID == actCoppaYes:
		e.coppaAnswer(s, b, true, "Yes")
	case actionID == actCoppaNo:
		e.coppaAnswer(s, b, false, "No")
	case actionID == actEditMore:
		e.editMenu(s, b)
	case actionID == actLooksGood:
		title := "document"
		if s.Flow != nil && s.Flow.Doc != "" {
			title = docTitle(s.Flow.Doc)
		}
		b.say("Great! You can download, copy, or email your " + title + " from the panel whenever you're ready.")
	case actionID == actWhyDocs:
		b.say("A Privacy Policy explains what personal information you collect and how you use it; most "+
			"jurisdictions require one. Terms of Use set the rules for using your website and help limit "+
			"your liability. Which one would you like to start with?",
			chatlog.Action{Label: "Privacy Policy", Intent: actStartPrefix + FlowPrivacy, Style: chatlog.StylePrimary},
			chatlog.Action{Label: "Terms of Use", Intent: actStartPrefix + FlowTerms, Style: chatlog.StylePrimary},
		)
	case strings.HasPrefix(actionID, actStartPrefix):
		e.startFlow(s, b, strings.TrimPrefix(actionID, actStartPrefix))
	case strings.HasPrefix(actionID, actFieldPrefix):
		e.enterEditField(s, b, record.Field(strings.TrimPrefix(actionID, actFieldPrefix)))
	default:
		b.say(intent.DefaultReply)
	}
}

func (e *Engine) startFlow(s *Session, b *batch, name string) {
	flow, ok := e.flows[name]
	if !ok {
		b.say(intent.DefaultReply)
		return
	}
	s.Flow = flow
	s.Editing = false
	s.CoppaFollowup = false
	s.Generating = false
	s.Generated = false
	s.DocumentText = ""
	s.ActiveField = ""
	s.PanelVisible = true

	for _, line := range flow.Intro {
		b.say(line)
	}
	e.advanceTo(s, b, flow.Start)
}

func (e *Engine) currentStep(s *Session) (Step, bool) {
	if s.Flow == nil {
		return Step{}, false
	}
	return s.Flow.step(s.StepID)
}

// advanceTo enters a step and emits its prompt.
func (e *Engine) advanceTo(s *Session, b *batch, id StepID) {
	flow := s.Flow
	if flow == nil {
		return
	}
	step, ok := flow.step(id)
	if !ok {
		return
	}
	s.StepID = id
	s.Editing = false

	switch step.Kind {
	case StepWelcome:
		s.ActiveField = ""
		b.say(step.Prompt(&s.Record), stepActions(step)...)
	case StepConfirm:
		s.ActiveField = step.Field
		b.say(step.Prompt(&s.Record), stepActions(step)...)
	case StepCapture:
		s.ActiveField = step.Field
		s.Editing = true
		b.say(step.Prompt(&s.Record))
	case StepCoppa:
		s.ActiveField = record.FieldCoppa
		b.say(step.Prompt(&s.Record), coppaActions(step)...)
	case StepGenerate:
		e.generateDocument(s, b, step)
	case StepEditMore:
		e.editMenu(s, b)
	case StepDone:
		s.ActiveField = ""
		s.PanelVisible = false
		b.say("Perfect! I have all the information I need about your business. Thank you for confirming your details.")
	}
}

func stepActions(step Step) []chatlog.Action {
	var actions []chatlog.Action
	if step.ConfirmLabel != "" {
		actions = append(actions, chatlog.Action{Label: step.ConfirmLabel, Intent: actConfirm, Style: chatlog.StylePrimary})
	}
	if step.EditLabel != "" {
		actions = append(actions, chatlog.Action{Label: step.EditLabel, Intent: actEdit, Style: chatlog.StyleSecondary})
	}
	if step.InfoLabel != "" {
		actions = append(actions, chatlog.Action{Label: step.InfoLabel, Intent: actInfo, Style: chatlog.StyleSecondary})
	}
	return actions
}

func coppaActions(step Step) []chatlog.Action {
	actions := []chatlog.Action{
		{Label: "Yes", Intent: actCoppaYes, Style: chatlog.StylePrimary},
		{Label: "No", Intent: actCoppaNo, Style: chatlog.StyleSecondary},
	}
	if step.InfoLabel != "" {
		actions = append(actions, chatlog.Action{Label: step.InfoLabel, Intent: actInfo, Style: chatlog.StyleSecondary})
	}
	return actions
}

// confirmCurrent logs the confirmed value and moves exactly one step on.
func (e *Engine) confirmCurrent(s *Session, b *batch) {
	step, ok := e.currentStep(s)
	if !ok {
		b.say(intent.DefaultReply)
		return
	}
	switch step.Kind {
	case StepWelcome:
		s.Recorder.Record(step.Prompt(&s.Record), "Confirmed", "")
	case StepConfirm:
		s.Recorder.Record(step.Prompt(&s.Record), s.Record.Get(step.Field), string(step.Field))
	default:
		b.say(intent.DefaultReply)
		return
	}
	e.advanceTo(s, b, step.Next)
}

// editCurrent enters the current step's edit sub-state. On a welcome step
// the edit applies to the first field step instead.
func (e *Engine) editCurrent(s *Session, b *batch) {
	step, ok := e.currentStep(s)
	if !ok {
		b.say(intent.DefaultReply)
		return
	}
	if step.Kind == StepWelcome {
		next, nok := s.Flow.step(step.Next)
		if !nok {
			return
		}
		s.StepID = next.ID
		step = next
	}
	e.enterEdit(s, b, step)
}

func (e *Engine) enterEdit(s *Session, b *batch, step Step) {
	if step.Field == record.FieldCoppa || step.Kind == StepCoppa {
		e.advanceTo(s, b, step.ID)
		return
	}
	s.StepID = step.ID
	s.Editing = true
	s.ActiveField = step.Field
	s.PanelVisible = true
	prompt := step.EditPrompt
	if prompt == "" {
		prompt = editPromptFor(step.Field)
	}
	b.say(prompt)
}

func (e *Engine) infoCurrent(s *Session, b *batch) {
	step, ok := e.currentStep(s)
	if !ok || step.InfoText == "" {
		b.say(intent.DefaultReply)
		return
	}
	if step.Kind == StepCoppa {
		b.say(step.InfoText, coppaActions(step)...)
		return
	}
	b.say(step.InfoText, stepActions(step)...)
}

// completeValue applies a captured value and resumes the flow after the
// owning step. The edited field is not re-confirmed.
func (e *Engine) completeValue(s *Session, b *batch, field record.Field, value string) {
	if field == "" || strings.TrimSpace(value) == "" {
		b.say(intent.DefaultReply)
		return
	}
	if field == record.FieldCoppa {
		e.coppaAnswer(s, b, record.TruthyAnswer(value), value)
		return
	}

	s.Record.Set(field, value)
	label := strings.ToLower(record.Label(field))
	s.Recorder.Record("Updated "+label, value, string(field))
	s.Editing = false
	s.ActiveField = ""

	b.say("Thank you! I've updated your " + label + " to \"" + s.Record.Get(field) + "\".")

	if s.Flow != nil {
		if st, ok := s.Flow.FieldStep(field); ok && st.Next != "" {
			e.advanceTo(s, b, st.Next)
		}
	}
}

const (
	coppaServeQuestion = "Does your business primarily serve children under the age of 13?"
	coppaOptQuestion   = "Even though your business doesn't primarily serve children under 13, " +
		"do you want to include COPPA compliance language in your privacy policy anyway?"
)

// coppaAnswer resolves the regulatory flag in at most two questions. Only
// the final answer carries the "coppa" tag the assembler reads.
func (e *Engine) coppaAnswer(s *Session, b *batch, yes bool, raw string) {
	step, hasStep := e.currentStep(s)

	if s.CoppaFollowup {
		s.CoppaFollowup = false
		s.Record.CoppaCompliance = yes
		s.Recorder.Record(coppaOptQuestion, raw, string(record.FieldCoppa))
		if yes {
			b.say("Understood. I'll include COPPA compliance language in your privacy policy.")
		} else {
			b.say("Understood. No COPPA compliance language will be included in your privacy policy.")
		}
		if hasStep && step.Next != "" {
			e.advanceTo(s, b, step.Next)
		}
		return
	}

	if yes {
		s.Record.CoppaCompliance = true
		s.Recorder.Record(coppaServeQuestion, raw, string(record.FieldCoppa))
		b.say("Since your business primarily serves children under the age of 13, " +
			"I'll include appropriate COPPA compliance language in your privacy policy.")
		if hasStep && step.Next != "" {
			e.advanceTo(s, b, step.Next)
		}
		return
	}

	s.Recorder.Record(coppaServeQuestion, raw, "serves_children")
	s.CoppaFollowup = true
	b.say(coppaOptQuestion,
		chatlog.Action{Label: "Yes", Intent: actCoppaYes, Style: chatlog.StylePrimary},
		chatlog.Action{Label: "No", Intent: actCoppaNo, Style: chatlog.StyleSecondary},
	)
}

// enterEditField re-enters a field's edit state from an edit command or the
// edit menu, inside or outside its flow.
func (e *Engine) enterEditField(s *Session, b *batch, field record.Field) {
	if field == record.FieldCoppa {
		if s.Flow != nil {
			if st, ok := s.Flow.FieldStep(field); ok {
				e.advanceTo(s, b, st.ID)
				return
			}
		}
		s.CoppaFollowup = false
		s.ActiveField = record.FieldCoppa
		s.PanelVisible = true
		b.say(coppaServeQuestion,
			chatlog.Action{Label: "Yes", Intent: actCoppaYes, Style: chatlog.StylePrimary},
			chatlog.Action{Label: "No", Intent: actCoppaNo, Style: chatlog.StyleSecondary},
		)
		return
	}

	if s.Flow != nil {
		if st, ok := s.Flow.FieldStep(field); ok {
			e.enterEdit(s, b, st)
			return
		}
	}

	s.Editing = true
	s.ActiveField = field
	s.PanelVisible = true
	b.say(editPromptFor(field))
}

func (e *Engine) editMenu(s *Session, b *batch) {
	flow := s.Flow
	if flow == nil || len(flow.Menu) == 0 {
		b.say(intent.DefaultReply)
		return
	}
	actions := make([]chatlog.Action, 0, len(flow.Menu))
	for _, id := range flow.Menu {
		st, ok := flow.step(id)
		if !ok || st.Field == "" {
			continue
		}
		actions = append(actions, chatlog.Action{
			Label:  record.Label(st.Field),
			Intent: actFieldPrefix + string(st.Field),
			Style:  chatlog.StyleSecondary,
		})
	}
	if _, ok := flow.step("edit_more"); ok {
		s.StepID = "edit_more"
	}
	s.Editing = false
	s.ActiveField = ""
	b.say("What would you like to edit?", actions...)
}

// generateDocument assembles from the live record and audit log, shows the
// loading panel, and delivers the document after the generation delay.
func (e *Engine) generateDocument(s *Session, b *batch, step Step) {
	flow := s.Flow
	if flow == nil || flow.Doc == "" {
		return
	}
	s.StepID = step.ID
	s.Editing = false
	s.ActiveField = ""
	s.PanelVisible = true
	s.Generating = true

	title := docTitle(flow.Doc)
	b.say("Great! I'm generating your " + title + " now. This will just take a moment...")

	text := document.Assemble(flow.Doc, s.Record, s.Recorder.All())
	s.Recorder.Record("Generate "+title, "generated", "document_generation")

	next := step.Next
	b.add(Event{
		Delay: b.delay + e.generateDelay,
		Message: &chatlog.Message{
			Text: "Your " + title + " is ready! Review it in the panel; you can download, copy, or email it from there.",
			Sender: chatlog.SenderBot,
			Actions: []chatlog.Action{
				{Label: "Looks Good", Intent: actLooksGood, Style: chatlog.StylePrimary},
				{Label: "Edit Something Else", Intent: actEditMore, Style: chatlog.StyleSecondary},
			},
			At: time.Now().UTC(),
		},
		Document: &DocumentEvent{Doc: flow.Doc, Text: text},
		mutate: func(sess *Session) {
			sess.Generating = false
			sess.Generated = true
			sess.DocumentText = text
			if next != "" {
				sess.StepID = next
			}
		},
	})
}

var editPrompts = map[record.Field]string{
	record.FieldName:         "Please update your business name in the form on the right, or type your response below.",
	record.FieldEmail:        "Please update your business email in the form on the right, or type your response below.",
	record.FieldJurisdiction: "Please update your business jurisdiction in the form on the right, or type your response below.",
	record.FieldWebsite:      "Please update your website URL in the form on the right, or type your response below.",
	record.FieldCategory:     "Please update your industry in the form on the right, or type your response below.",
	record.FieldServices:     "Please update your services in the form on the right, or type your response below.",
	record.FieldMarket:       "Please update your market in the form on the right, or type your response below.",
	record.FieldPointOfSale:  "Please update your point of sale in the form on the right, or type your response below.",
}

func editPromptFor(field record.Field) string {
	if p, ok := editPrompts[field]; ok {
		return p
	}
	return "Please update your " + strings.ToLower(record.Label(field)) + " in the form on the right, or type your response below."
}

func docTitle(t document.Type) string {
	switch t {
	case document.TypePrivacy:
		return "Privacy Policy"
	case document.TypeTerms:
		return "Terms of Use"
	}
	return "document"
}
