// Package chatlog keeps the append-only chat transcript for a session.
package chatlog

import "time"

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

type Style string

const (
	StylePrimary   Style = "primary"
	StyleSecondary Style = "secondary"
)

// Action is a clickable affordance attached to a bot message. It carries an
// intent identifier resolved through the engine's dispatch table, never a
// callback, so messages stay serializable.
type Action struct {
	Label  string `json:"label"`
	Intent string `json:"intent"`
	Style  Style  `json:"style"`
}

type Message struct {
	Text    string    `json:"text"`
	Sender  Sender    `json:"sender"`
	Actions []Action  `json:"actions,omitempty"`
	At      time.Time `json:"at"`
}

// Transcript is the ordered message log. Messages are never removed; once a
// newer bot message with actions is appended, earlier messages' actions are
// superseded and only the newest actionable message can still fire intents.
type Transcript struct {
	messages []Message
}

func NewTranscript() *Transcript {
	return &Transcript{}
}

func (t *Transcript) Append(msg Message) {
	if msg.At.IsZero() {
		msg.At = time.Now().UTC()
	}
	t.messages = append(t.messages, msg)
}

// AppendUser appends a plain user turn.
func (t *Transcript) AppendUser(text string) {
	t.Append(Message{Text: text, Sender: SenderUser})
}

// AppendBot appends a bot turn with optional actions.
func (t *Transcript) AppendBot(text string, actions ...Action) {
	t.Append(Message{Text: text, Sender: SenderBot, Actions: actions})
}

func (t *Transcript) Len() int {
	return len(t.messages)
}

// Messages returns a copy of the transcript for display.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Last returns the most recent message, or nil for an empty transcript.
func (t *Transcript) Last() *Message {
	if len(t.messages) == 0 {
		return nil
	}
	return cloneMessage(t.messages[len(t.messages)-1])
}

// LastBot returns the most recent bot message, used as interpretation
// context for free-text input.
func (t *Transcript) LastBot() *Message {
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].Sender == SenderBot {
			return cloneMessage(t.messages[i])
		}
	}
	return nil
}

// LastActionable returns the newest bot message that still carries actions.
// Because appending a new actionable message supersedes older ones, this is
// the only message whose actions may fire.
func (t *Transcript) LastActionable() *Message {
	for i := len(t.messages) - 1; i >= 0; i-- {
		m := t.messages[i]
		if m.Sender == SenderBot && len(m.Actions) > 0 {
			return cloneMessage(m)
		}
	}
	return nil
}

func cloneMessage(m Message) *Message {
	c := m
	c.Actions = make([]Action, len(m.Actions))
	copy(c.Actions, m.Actions)
	return &c
}
