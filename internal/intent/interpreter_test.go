package intent

import (
	"testing"

	"github.com/mzampetti/complybot/internal/chatlog"
	"github.com/mzampetti/complybot/internal/record"
)

func botMsg(text string, actions ...chatlog.Action) *chatlog.Message {
	return &chatlog.Message{Text: text, Sender: chatlog.SenderBot, Actions: actions}
}

func confirmEdit() []chatlog.Action {
	return []chatlog.Action{
		{Label: "Confirm", Intent: "confirm", Style: chatlog.StylePrimary},
		{Label: "Edit", Intent: "edit", Style: chatlog.StyleSecondary},
	}
}

func TestResolveExactLabelMatch(t *testing.T) {
	ip := New(nil)
	m := botMsg(`Is your business name "Yngwie's Guitars"?`, confirmEdit()...)

	it := ip.Resolve("confirm", m, m)
	if it.Kind != KindAction || it.ActionID != "confirm" || it.Resolution != "exact_match" {
		t.Fatalf("Resolve() = %+v", it)
	}
}

func TestResolvePartialLabelMatch(t *testing.T) {
	ip := New(nil)
	m := botMsg("Is this correct?",
		chatlog.Action{Label: "Yes, that's correct", Intent: "confirm", Style: chatlog.StylePrimary},
		chatlog.Action{Label: "No, edit name", Intent: "edit", Style: chatlog.StyleSecondary},
	)

	it := ip.Resolve("that's correct", m, m)
	if it.Kind != KindAction || it.ActionID != "confirm" || it.Resolution != "partial_match" {
		t.Fatalf("Resolve() = %+v", it)
	}
}

func TestResolveYesSynonymPicksConfirm(t *testing.T) {
	ip := New(nil)
	m := botMsg(`Is your business name "Yngwie's Guitars"?`, confirmEdit()...)

	it := ip.Resolve("Yes", m, m)
	if it.Kind != KindAction || it.ActionID != "confirm" || it.Resolution != "synonym_yes" {
		t.Fatalf("Resolve() = %+v", it)
	}

	it = ip.Resolve("sure", m, m)
	if it.ActionID != "confirm" {
		t.Fatalf("sure should confirm, got %+v", it)
	}
}

func TestResolveNoSynonymPicksEdit(t *testing.T) {
	ip := New(nil)
	m := botMsg(`Is your business name "Yngwie's Guitars"?`, confirmEdit()...)

	it := ip.Resolve("wrong", m, m)
	if it.Kind != KindAction || it.ActionID != "edit" || it.Resolution != "synonym_no" {
		t.Fatalf("Resolve() = %+v", it)
	}
}

func TestEditCommandOutranksActionMatching(t *testing.T) {
	ip := New(nil)
	m := botMsg(`Is your business email "info@yngwiesfrets.com"?`, confirmEdit()...)

	it := ip.Resolve("change", m, m)
	if it.Resolution != "edit_command" {
		t.Fatalf("Resolve() = %+v, want the edit command category", it)
	}
	if it.Kind != KindAction || it.ActionID != "edit" {
		t.Fatalf("bare edit keyword should fire the edit-labelled action, got %+v", it)
	}
}

func TestEditCommandFieldNamedInInputWins(t *testing.T) {
	ip := New(nil)
	// The open question is about the regulatory flag, but the command names
	// the business name; the named field wins over the message context.
	m := botMsg("Does your business primarily serve children under the age of 13?",
		chatlog.Action{Label: "Yes", Intent: "coppa_yes", Style: chatlog.StylePrimary},
		chatlog.Action{Label: "No", Intent: "coppa_no", Style: chatlog.StyleSecondary},
	)

	it := ip.Resolve("please change my business name", m, m)
	if it.Kind != KindEditField || it.Field != record.FieldName {
		t.Fatalf("Resolve() = %+v, want edit entry for the name field", it)
	}
}

func TestCaptureContextSuppressesEditCommand(t *testing.T) {
	ip := New(nil)
	m := botMsg("Please update your business name in the form on the right, or type your response below.")

	// While a value is being captured, input is the value, even when it
	// contains an edit keyword.
	it := ip.Resolve("Change Management Consulting LLC", m, nil)
	if it.Kind != KindFieldValue || it.Field != record.FieldName {
		t.Fatalf("Resolve() = %+v, want literal field capture", it)
	}
	if it.Value != "Change Management Consulting LLC" {
		t.Fatalf("Value = %q, want the raw input", it.Value)
	}
}

func TestCoppaYesNoAnswers(t *testing.T) {
	ip := New(nil)
	m := botMsg("Does your business primarily serve children under the age of 13?")

	it := ip.Resolve("yeah", m, nil)
	if it.Kind != KindYes || it.Resolution != "coppa_yes" {
		t.Fatalf("Resolve(yeah) = %+v", it)
	}
	it = ip.Resolve("nope", m, nil)
	if it.Kind != KindNo || it.Resolution != "coppa_no" {
		t.Fatalf("Resolve(nope) = %+v", it)
	}
}

func TestCanvasCommands(t *testing.T) {
	ip := New(nil)
	if it := ip.Resolve("open canvas", nil, nil); it.Kind != KindOpenPanel {
		t.Fatalf("Resolve(open canvas) = %+v", it)
	}
	if it := ip.Resolve("close canvas", nil, nil); it.Kind != KindClosePanel {
		t.Fatalf("Resolve(close canvas) = %+v", it)
	}
}

func TestDocumentKeywordsStartFlows(t *testing.T) {
	ip := New(nil)
	it := ip.Resolve("I need a privacy policy", nil, nil)
	if it.Kind != KindStartFlow || it.Flow != "privacy" {
		t.Fatalf("Resolve() = %+v", it)
	}
	it = ip.Resolve("what about terms of use", nil, nil)
	if it.Kind != KindStartFlow || it.Flow != "terms" {
		t.Fatalf("Resolve() = %+v", it)
	}
}

func TestScriptedReplyAndFallback(t *testing.T) {
	ip := New(nil)
	it := ip.Resolve("hello there", nil, nil)
	if it.Kind != KindReply || it.Resolution != "scripted" || it.Reply == "" {
		t.Fatalf("Resolve(hello there) = %+v", it)
	}

	it = ip.Resolve("qwerty asdf", nil, nil)
	if it.Kind != KindReply || it.Reply != DefaultReply || it.Resolution != "fallback" {
		t.Fatalf("Resolve(qwerty asdf) = %+v", it)
	}
}

func TestLoadRepliesFromFile(t *testing.T) {
	table := DefaultReplies()
	if _, ok := table.Lookup("COMPLIANCE_WELCOME"); !ok {
		t.Fatalf("embedded table should carry the welcome trigger")
	}
}
