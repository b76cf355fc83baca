package intent

import (
	"strings"

	"github.com/mzampetti/complybot/internal/chatlog"
	"github.com/mzampetti/complybot/internal/record"
)

// DefaultReply is the last-resort answer when nothing else matches.
const DefaultReply = "I'm not sure how to respond to that."

var editKeywords = map[string]bool{
	"edit": true, "change": true, "modify": true, "update": true,
	"edit information": true, "edit more": true, "edit more info": true,
	"change it": true, "update it": true,
}

var yesWords = map[string]bool{
	"yes": true, "y": true, "yeah": true, "yep": true, "correct": true, "true": true,
}

var noWords = map[string]bool{
	"no": true, "n": true, "nope": true, "false": true, "incorrect": true,
}

var confirmSynonyms = map[string]bool{
	"yes": true, "confirm": true, "correct": true, "ok": true, "right": true,
	"good": true, "sure": true, "continue": true, "proceed": true,
}

var editSynonyms = map[string]bool{
	"no": true, "edit": true, "change": true, "update": true,
	"wrong": true, "incorrect": true, "modify": true,
}

// capturePrompt maps a bot prompt template to the field whose value the
// next input supplies.
type capturePrompt struct {
	template string
	field    record.Field
}

var capturePrompts = []capturePrompt{
	{"please update your business name", record.FieldName},
	{"what is your business name", record.FieldName},
	{"type your business name here", record.FieldName},
	{"please update your business email", record.FieldEmail},
	{"what is your business email", record.FieldEmail},
	{"please update your business jurisdiction", record.FieldJurisdiction},
	{"what jurisdiction", record.FieldJurisdiction},
	{"where is your business located", record.FieldJurisdiction},
	{"what is your website url", record.FieldWebsite},
	{"please update your website url", record.FieldWebsite},
	{"describe the services", record.FieldServices},
	{"what services does your business provide", record.FieldServices},
	{"please update your services", record.FieldServices},
	{"type your services here", record.FieldServices},
	{"please update your industry", record.FieldCategory},
	{"type your industry here", record.FieldCategory},
	{"please update your market", record.FieldMarket},
	{"please update your point of sale", record.FieldPointOfSale},
}

// editTarget maps substrings of the last bot message to the field (or
// document edit menu) an "edit" command should route to.
type editTarget struct {
	substr string
	field  record.Field
	flow   string
}

var editTargets = []editTarget{
	{substr: "business name", field: record.FieldName},
	{substr: "company name", field: record.FieldName},
	{substr: "business email", field: record.FieldEmail},
	{substr: "email address", field: record.FieldEmail},
	{substr: "jurisdiction", field: record.FieldJurisdiction},
	{substr: "coppa", field: record.FieldCoppa},
	{substr: "children", field: record.FieldCoppa},
	{substr: "terms", flow: "terms"},
	{substr: "privacy", flow: "privacy"},
}

// Interpreter resolves free text to exactly one intent, trying categories
// in a fixed precedence order.
type Interpreter struct {
	replies *ReplyTable
}

func New(replies *ReplyTable) *Interpreter {
	if replies == nil {
		replies = DefaultReplies()
	}
	return &Interpreter{replies: replies}
}

// Replies exposes the scripted table, used for trigger lookups like the
// welcome message.
func (ip *Interpreter) Replies() *ReplyTable {
	return ip.replies
}

// Resolve classifies text against the last bot message (context) and the
// last actionable message (candidate actions).
func (ip *Interpreter) Resolve(text string, lastBot, lastActionable *chatlog.Message) Intent {
	lower := strings.ToLower(strings.TrimSpace(text))

	// 1. Literal edit commands, unless the prior message asked for a value.
	if isEditCommand(lower) && !inCaptureContext(lastBot) {
		if it, ok := resolveEditCommand(lower, lastBot, lastActionable); ok {
			return it
		}
	}

	// 2. Direct yes/no answers to the regulatory question.
	if isCoppaPrompt(lastBot) {
		if yesWords[lower] {
			return Intent{Kind: KindYes, Value: text, Resolution: "coppa_yes"}
		}
		if noWords[lower] {
			return Intent{Kind: KindNo, Value: text, Resolution: "coppa_no"}
		}
	}

	// 3. Field capture: the whole input is the value the prompt asked for.
	// This outranks action-label matching so a value that happens to collide
	// with a button label is still taken literally.
	if field, ok := captureField(lastBot); ok {
		return Intent{Kind: KindFieldValue, Field: field, Value: text, Resolution: "field_capture"}
	}

	// 4. Match against the last actionable message's actions.
	if lastActionable != nil && len(lastActionable.Actions) > 0 {
		if it, ok := matchActions(lower, lastActionable.Actions); ok {
			return it
		}
	}

	// 5. Global panel commands.
	switch lower {
	case "open canvas":
		return Intent{Kind: KindOpenPanel, Resolution: "canvas_command"}
	case "close canvas":
		return Intent{Kind: KindClosePanel, Resolution: "canvas_command"}
	}

	// 6. Document keywords enter that document's flow from anywhere.
	if strings.Contains(lower, "privacy") {
		return Intent{Kind: KindStartFlow, Flow: "privacy", Value: text, Resolution: "doc_keyword"}
	}
	if strings.Contains(lower, "terms") {
		return Intent{Kind: KindStartFlow, Flow: "terms", Value: text, Resolution: "doc_keyword"}
	}

	// 7. Scripted reply table, then the fixed default.
	if reply, ok := ip.replies.Find(text); ok {
		return Intent{Kind: KindReply, Reply: reply, Resolution: "scripted"}
	}
	return Intent{Kind: KindReply, Reply: DefaultReply, Resolution: "fallback"}
}

// isEditCommand accepts the bare keywords and their multi-word variants
// ("please change my business name").
func isEditCommand(lower string) bool {
	if editKeywords[lower] {
		return true
	}
	hasVerb := strings.Contains(lower, "edit") || strings.Contains(lower, "change") ||
		strings.Contains(lower, "modify") || strings.Contains(lower, "update")
	if !hasVerb {
		return false
	}
	_, ok := editTargetIn(lower)
	return ok
}

func editTargetIn(text string) (editTarget, bool) {
	for _, t := range editTargets {
		if strings.Contains(text, t.substr) {
			return t, true
		}
	}
	return editTarget{}, false
}

func resolveEditCommand(lower string, lastBot, lastActionable *chatlog.Message) (Intent, bool) {
	// A field named in the command itself wins over button lookup.
	if !editKeywords[lower] {
		if t, ok := editTargetIn(lower); ok {
			return editTargetIntent(t), true
		}
	}
	if lastActionable != nil {
		for _, a := range lastActionable.Actions {
			label := strings.ToLower(a.Label)
			if strings.Contains(label, "edit") || strings.Contains(label, "change") ||
				strings.Contains(label, "modify") || strings.Contains(label, "update") {
				return Intent{Kind: KindAction, ActionID: a.Intent, Resolution: "edit_command"}, true
			}
		}
	}
	if lastBot == nil {
		return Intent{}, false
	}
	if t, ok := editTargetIn(strings.ToLower(lastBot.Text)); ok {
		return editTargetIntent(t), true
	}
	return Intent{}, false
}

func editTargetIntent(t editTarget) Intent {
	if t.flow != "" {
		return Intent{Kind: KindEditMenu, Flow: t.flow, Resolution: "edit_command"}
	}
	return Intent{Kind: KindEditField, Field: t.field, Resolution: "edit_command"}
}

func matchActions(lower string, actions []chatlog.Action) (Intent, bool) {
	// Exact case-insensitive label match.
	for _, a := range actions {
		if strings.ToLower(a.Label) == lower {
			return Intent{Kind: KindAction, ActionID: a.Intent, Value: lower, Resolution: "exact_match"}, true
		}
	}

	// Bidirectional substring containment.
	for _, a := range actions {
		label := strings.ToLower(a.Label)
		if strings.Contains(label, lower) || strings.Contains(lower, label) {
			return Intent{Kind: KindAction, ActionID: a.Intent, Value: lower, Resolution: "partial_match"}, true
		}
	}

	// Yes/confirm and no/edit synonym vocabularies.
	if confirmSynonyms[lower] {
		if a, ok := pickConfirmAction(actions); ok {
			return Intent{Kind: KindAction, ActionID: a.Intent, Value: lower, Resolution: "synonym_yes"}, true
		}
	}
	if editSynonyms[lower] {
		if a, ok := pickEditAction(actions); ok {
			return Intent{Kind: KindAction, ActionID: a.Intent, Value: lower, Resolution: "synonym_no"}, true
		}
	}

	// Generation and edit keyword routing against labels.
	if strings.Contains(lower, "generate") || strings.Contains(lower, "create") {
		for _, a := range actions {
			if strings.Contains(strings.ToLower(a.Label), "generate") {
				return Intent{Kind: KindAction, ActionID: a.Intent, Value: lower, Resolution: "generate_keyword"}, true
			}
		}
	}
	if strings.Contains(lower, "edit") || strings.Contains(lower, "change") {
		for _, a := range actions {
			if strings.Contains(strings.ToLower(a.Label), "edit") {
				return Intent{Kind: KindAction, ActionID: a.Intent, Value: lower, Resolution: "edit_keyword"}, true
			}
		}
	}
	return Intent{}, false
}

func pickConfirmAction(actions []chatlog.Action) (chatlog.Action, bool) {
	for _, a := range actions {
		label := strings.ToLower(a.Label)
		if label == "yes" || label == "confirm" || label == "continue" ||
			strings.Contains(label, "generate") || strings.Contains(label, "correct") {
			return a, true
		}
	}
	for _, a := range actions {
		if a.Style == chatlog.StylePrimary {
			return a, true
		}
	}
	return chatlog.Action{}, false
}

func pickEditAction(actions []chatlog.Action) (chatlog.Action, bool) {
	for _, a := range actions {
		label := strings.ToLower(a.Label)
		if label == "no" || strings.Contains(label, "edit") {
			return a, true
		}
	}
	for _, a := range actions {
		if a.Style == chatlog.StyleSecondary {
			return a, true
		}
	}
	return chatlog.Action{}, false
}

func inCaptureContext(lastBot *chatlog.Message) bool {
	_, ok := captureField(lastBot)
	return ok
}

func captureField(lastBot *chatlog.Message) (record.Field, bool) {
	if lastBot == nil {
		return "", false
	}
	text := strings.ToLower(lastBot.Text)
	for _, p := range capturePrompts {
		if strings.Contains(text, p.template) {
			return p.field, true
		}
	}
	return "", false
}

func isCoppaPrompt(lastBot *chatlog.Message) bool {
	if lastBot == nil {
		return false
	}
	text := strings.ToLower(lastBot.Text)
	return strings.Contains(text, "serve children") ||
		strings.Contains(text, "children's online privacy protection act") ||
		strings.Contains(text, "coppa")
}
