package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mzampetti/complybot/internal/chatlog"
	"github.com/mzampetti/complybot/internal/dialogue"
	"github.com/mzampetti/complybot/internal/record"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeUserText      MessageType = "user_text"
	TypeUserAction    MessageType = "user_action"
	TypePanelEdit     MessageType = "panel_edit"
	TypePanelSave     MessageType = "panel_save"
	TypeClientControl MessageType = "client_control"
	TypeBotMessage    MessageType = "bot_message"
	TypeUserEcho      MessageType = "user_echo"
	TypePanelState    MessageType = "panel_state"
	TypeDocumentReady MessageType = "document_ready"
	TypeSystemEvent   MessageType = "system_event"
	TypeErrorEvent    MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// UserText carries one free-text chat input.
type UserText struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
	TSMs      int64       `json:"ts_ms"`
}

// UserAction reports a chat button click by its intent ID.
type UserAction struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	ActionID  string      `json:"action_id"`
	Label     string      `json:"label"`
}

// PanelEdit carries one write-through change to a panel control.
type PanelEdit struct {
	Type      MessageType  `json:"type"`
	SessionID string       `json:"session_id"`
	Field     record.Field `json:"field"`
	Value     string       `json:"value"`
}

// PanelSave commits the active panel edit.
type PanelSave struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
}

// ClientControl carries out-of-band actions: restart, end.
type ClientControl struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Action    string      `json:"action"`
}

type BotMessage struct {
	Type      MessageType      `json:"type"`
	SessionID string           `json:"session_id"`
	Text      string           `json:"text"`
	Actions   []chatlog.Action `json:"actions,omitempty"`
	TSMs      int64            `json:"ts_ms"`
}

// UserEcho reflects an accepted user input back, so every transcript entry
// has exactly one wire message.
type UserEcho struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
	TSMs      int64       `json:"ts_ms"`
}

type PanelState struct {
	Type      MessageType        `json:"type"`
	SessionID string             `json:"session_id"`
	Panel     dialogue.PanelView `json:"panel"`
}

type DocumentReady struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Doc       string      `json:"doc"`
	Text      string      `json:"text"`
}

type SystemEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeUserText:
		var msg UserText
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.Text == "" {
			return nil, errors.New("invalid user_text")
		}
		return msg, nil
	case TypeUserAction:
		var msg UserAction
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.ActionID == "" {
			return nil, errors.New("invalid user_action")
		}
		return msg, nil
	case TypePanelEdit:
		var msg PanelEdit
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.Field == "" {
			return nil, errors.New("invalid panel_edit")
		}
		return msg, nil
	case TypePanelSave:
		var msg PanelSave
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("invalid panel_save")
		}
		return msg, nil
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.Action == "" {
			return nil, errors.New("invalid client_control")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
