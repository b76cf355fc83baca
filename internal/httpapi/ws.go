package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mzampetti/complybot/internal/dialogue"
	"github.com/mzampetti/complybot/internal/protocol"
)

// wsConn serializes all session work for one connection. Socket reads and
// typing-delay timers both post closures to work, so inputs and delayed
// bot messages apply strictly in arrival order.
type wsConn struct {
	srv      *Server
	sess     *dialogue.Session
	ctx      context.Context
	cancel   context.CancelFunc
	work     chan func()
	outbound chan any
	timers   []*time.Timer
}

func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &wsConn{
		srv:      s,
		sess:     sess,
		ctx:      ctx,
		cancel:   cancel,
		work:     make(chan func(), 256),
		outbound: make(chan any, 256),
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-c.outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
				if t, ok := messageTypeOf(msg); ok {
					s.metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
				}
			}
		}
	}()

	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case fn, ok := <-c.work:
				if !ok {
					return
				}
				fn()
			}
		}
	}()

	// Greet fresh conversations; reconnects resume the existing transcript.
	c.post(func() {
		var empty bool
		sess.Do(func() { empty = sess.Transcript.Len() == 0 })
		if empty {
			var events []dialogue.Event
			sess.Do(func() { events = s.engine.Greet(sess) })
			c.scheduleEvents(events)
		}
		c.pushPanel()
	})

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			c.send(protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Retryable: false,
				Detail:    err.Error(),
			})
			continue
		}
		if t, ok := messageTypeOf(parsed); ok {
			s.metrics.WSMessages.WithLabelValues("inbound", string(t)).Inc()
		}

		msg := parsed
		select {
		case <-ctx.Done():
			break readLoop
		case c.work <- func() { c.handle(msg) }:
		}
	}

	cancel()
	<-runnerDone
	<-writerDone
	for _, t := range c.timers {
		t.Stop()
	}
	s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
}

// post queues work from outside the runner.
func (c *wsConn) post(fn func()) {
	select {
	case c.work <- fn:
	case <-c.ctx.Done():
	}
}

// send queues an outbound message, dropping when the writer is saturated
// to keep websocket writes single-threaded and non-blocking.
func (c *wsConn) send(msg any) {
	select {
	case c.outbound <- msg:
	default:
	}
}

// handle runs on the runner goroutine.
func (c *wsConn) handle(parsed any) {
	sess := c.sess
	sess.Touch()

	switch m := parsed.(type) {
	case protocol.UserText:
		c.echo(m.Text)
		var events []dialogue.Event
		sess.Do(func() { events = c.srv.engine.HandleText(sess, m.Text) })
		c.scheduleEvents(events)
		c.pushPanel()
	case protocol.UserAction:
		if m.Label != "" {
			c.echo(m.Label)
		}
		var events []dialogue.Event
		sess.Do(func() { events = c.srv.engine.HandleAction(sess, m.ActionID, m.Label) })
		c.scheduleEvents(events)
		c.pushPanel()
	case protocol.PanelEdit:
		sess.Do(func() { c.srv.engine.HandlePanelEdit(sess, m.Field, m.Value) })
		c.pushPanel()
	case protocol.PanelSave:
		var events []dialogue.Event
		sess.Do(func() { events = c.srv.engine.HandlePanelSave(sess) })
		c.scheduleEvents(events)
		c.pushPanel()
	case protocol.ClientControl:
		c.handleControl(m)
	}
}

func (c *wsConn) handleControl(m protocol.ClientControl) {
	switch m.Action {
	case "restart":
		var events []dialogue.Event
		c.sess.Do(func() { events = c.srv.engine.Restart(c.sess) })
		c.srv.metrics.SessionEvents.WithLabelValues("restarted").Inc()
		c.send(protocol.SystemEvent{
			Type:      protocol.TypeSystemEvent,
			SessionID: c.sess.ID,
			Code:      "session_restarted",
		})
		c.scheduleEvents(events)
		c.pushPanel()
	case "end":
		_, _ = c.srv.sessions.End(c.sess.ID)
		c.srv.metrics.ActiveSessions.Set(float64(c.srv.sessions.ActiveCount()))
		c.srv.metrics.SessionEvents.WithLabelValues("ended").Inc()
		c.send(protocol.SystemEvent{
			Type:      protocol.TypeSystemEvent,
			SessionID: c.sess.ID,
			Code:      "session_ended",
		})
		c.cancel()
	default:
		c.send(protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: c.sess.ID,
			Code:      "unknown_control_action",
			Retryable: false,
			Detail:    m.Action,
		})
	}
}

// scheduleEvents delivers zero-delay events immediately and arms timers for
// the rest. Timer callbacks re-enter via the work channel, so a user input
// arriving before a delayed message is processed first; messages only join
// the transcript at delivery.
func (c *wsConn) scheduleEvents(events []dialogue.Event) {
	for _, ev := range events {
		ev := ev
		if ev.Delay <= 0 {
			c.deliver(ev)
			continue
		}
		t := time.AfterFunc(ev.Delay, func() {
			c.post(func() { c.deliver(ev) })
		})
		c.timers = append(c.timers, t)
	}
}

func (c *wsConn) deliver(ev dialogue.Event) {
	c.sess.Do(func() { dialogue.Deliver(c.sess, ev) })
	if ev.Message != nil {
		c.send(protocol.BotMessage{
			Type:      protocol.TypeBotMessage,
			SessionID: c.sess.ID,
			Text:      ev.Message.Text,
			Actions:   ev.Message.Actions,
			TSMs:      ev.Message.At.UnixMilli(),
		})
	}
	if ev.Document != nil {
		c.send(protocol.DocumentReady{
			Type:      protocol.TypeDocumentReady,
			SessionID: c.sess.ID,
			Doc:       string(ev.Document.Doc),
			Text:      ev.Document.Text,
		})
	}
	c.pushPanel()
}

func (c *wsConn) echo(text string) {
	c.send(protocol.UserEcho{
		Type:      protocol.TypeUserEcho,
		SessionID: c.sess.ID,
		Text:      text,
		TSMs:      time.Now().UnixMilli(),
	})
}

func (c *wsConn) pushPanel() {
	var view dialogue.PanelView
	c.sess.Do(func() { view = c.sess.PanelView() })
	c.send(protocol.PanelState{
		Type:      protocol.TypePanelState,
		SessionID: c.sess.ID,
		Panel:     view,
	})
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.UserText:
		return m.Type, true
	case protocol.UserAction:
		return m.Type, true
	case protocol.PanelEdit:
		return m.Type, true
	case protocol.PanelSave:
		return m.Type, true
	case protocol.ClientControl:
		return m.Type, true
	case protocol.BotMessage:
		return m.Type, true
	case protocol.UserEcho:
		return m.Type, true
	case protocol.PanelState:
		return m.Type, true
	case protocol.DocumentReady:
		return m.Type, true
	case protocol.SystemEvent:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
