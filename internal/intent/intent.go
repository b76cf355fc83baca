// Package intent classifies user input into dialogue intents.
package intent

import "github.com/mzampetti/complybot/internal/record"

// Kind identifies intent variants.
type Kind string

const (
	// KindAction fires an action attached to the last actionable message.
	KindAction Kind = "action"
	// KindFieldValue carries the whole input as a literal field value.
	KindFieldValue Kind = "field_value"
	// KindYes / KindNo answer the regulatory yes/no question directly.
	KindYes Kind = "yes"
	KindNo  Kind = "no"
	// KindEditField re-enters a specific field's edit sub-state.
	KindEditField Kind = "edit_field"
	// KindEditMenu opens a document's edit menu.
	KindEditMenu Kind = "edit_menu"
	// KindOpenPanel / KindClosePanel toggle panel visibility.
	KindOpenPanel  Kind = "open_panel"
	KindClosePanel Kind = "close_panel"
	// KindStartFlow enters a document flow by keyword.
	KindStartFlow Kind = "start_flow"
	// KindReply answers with scripted or fallback text, no state change.
	KindReply Kind = "reply"
)

// Intent is the resolved interpretation of one user input. Resolution tags
// how the intent was derived, for the audit log.
type Intent struct {
	Kind       Kind
	ActionID   string
	Field      record.Field
	Value      string
	Flow       string
	Reply      string
	Resolution string
}
