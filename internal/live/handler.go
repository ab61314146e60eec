// Package live serves WebSocket connections that evaluate a form as its
// answers change. Each connection keeps its own answers and subject and
// reads the shared authoring snapshot of the definition, so edits made
// elsewhere are pushed to every open connection.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"maps"
	"net/http"
	"sort"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/matthewbaird/caseforms/internal/authoring"
	"github.com/matthewbaird/caseforms/internal/engine"
	"github.com/matthewbaird/caseforms/internal/form"
	"github.com/matthewbaird/caseforms/internal/store"
)

// Handler manages live evaluation WebSocket connections.
type Handler struct {
	sessions *authoring.Manager
	engine   *engine.Engine
}

// NewHandler creates a WebSocket handler.
func NewHandler(sessions *authoring.Manager, eng *engine.Engine) *Handler {
	return &Handler{sessions: sessions, engine: eng}
}

// conversation is the per-connection evaluation state.
type conversation struct {
	id         string
	answers    map[string]any
	constants  map[string]any
	subject    *engine.Subject
	// initialize is set until the first state after open or reset, which
	// applies initial values and keeps them as answers.
	initialize bool
}

// ServeHTTP upgrades to WebSocket and runs the message loop.
// GET /v1/live/{id}
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defID := chi.URLParam(r, "id")
	sess, err := h.sessions.Session(r.Context(), defID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Printf("live: websocket accept: %v", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conv := &conversation{id: uuid.New().String(), answers: map[string]any{}, initialize: true}

	updates := make(chan *authoring.Snapshot, 1)
	unwatch := sess.Watch(func(snap *authoring.Snapshot) {
		// Keep only the latest snapshot.
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- snap:
		default:
		}
	})
	defer unwatch()

	msgs := make(chan ClientMessage)
	go func() {
		defer close(msgs)
		for {
			var msg ClientMessage
			if err := wsjson.Read(ctx, conn, &msg); err != nil {
				if websocket.CloseStatus(err) != -1 {
					log.Printf("live: connection %s closed: %v", conv.id, websocket.CloseStatus(err))
				}
				return
			}
			select {
			case msgs <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	snap := sess.Snapshot()
	h.send(ctx, conn, ServerMessage{
		Type: "session",
		Data: SessionData{SessionID: conv.id, DefinitionID: defID, Revision: snap.Revision},
	})

	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-updates:
			if snap == nil {
				h.sendError(ctx, conn, "", "definition_deleted", "definition "+defID+" was deleted")
				conn.Close(websocket.StatusGoingAway, "definition deleted")
				return
			}
			h.sendState(ctx, conn, "", snap, conv, nil)
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			h.handle(ctx, conn, sess, conv, msg)
		}
	}
}

func (h *Handler) handle(ctx context.Context, conn *websocket.Conn, sess *authoring.Session, conv *conversation, msg ClientMessage) {
	switch msg.Type {
	case "answer":
		var data AnswerData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			h.sendError(ctx, conn, msg.ID, "invalid_data", "invalid answer data")
			return
		}
		changed := make(map[string]any, len(data.Answers)+1)
		maps.Copy(changed, data.Answers)
		if data.LinkID != "" {
			changed[data.LinkID] = data.Value
		}
		if len(changed) == 0 {
			h.sendError(ctx, conn, msg.ID, "empty_answer", "answer needs linkId or answers")
			return
		}
		ids := make([]string, 0, len(changed))
		for id, v := range changed {
			if v == nil {
				delete(conv.answers, id)
			} else {
				conv.answers[id] = v
			}
			ids = append(ids, id)
		}
		sort.Strings(ids)
		h.sendState(ctx, conn, msg.ID, sess.Snapshot(), conv, ids)
	case "reset":
		var data ResetData
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				h.sendError(ctx, conn, msg.ID, "invalid_data", "invalid reset data")
				return
			}
		}
		conv.answers = maps.Clone(data.Answers)
		if conv.answers == nil {
			conv.answers = map[string]any{}
		}
		conv.constants = data.Constants
		conv.initialize = true
		h.sendState(ctx, conn, msg.ID, sess.Snapshot(), conv, nil)
	case "subject":
		var data SubjectData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			h.sendError(ctx, conn, msg.ID, "invalid_data", "invalid subject data")
			return
		}
		conv.subject = data.Subject
		h.sendState(ctx, conn, msg.ID, sess.Snapshot(), conv, nil)
	case "ping":
		h.send(ctx, conn, ServerMessage{Type: "pong", RequestID: msg.ID})
	default:
		h.sendError(ctx, conn, msg.ID, "unknown_type", fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

func (h *Handler) sendState(ctx context.Context, conn *websocket.Conn, requestID string, snap *authoring.Snapshot, conv *conversation, changed []string) {
	st := h.engine.Evaluate(engine.Input{
		Definition: snap.Definition,
		Index:      snap.Index,
		Answers:    conv.answers,
		Constants:  conv.constants,
		Initialize: conv.initialize,
	}, conv.subject)
	if conv.initialize {
		maps.Copy(conv.answers, st.Initial)
		conv.initialize = false
	}
	if changed == nil {
		changed = []string{}
	}
	h.send(ctx, conn, ServerMessage{
		Type:      "state",
		RequestID: requestID,
		Data: StateData{
			Revision: snap.Revision,
			Changed:  changed,
			Affected: affected(snap, changed),
			State:    st,
		},
	})
}

// affected expands the index's affected set with the descendants of each
// affected item, since disabling a group disables its subtree.
func affected(snap *authoring.Snapshot, changed []string) []string {
	out := []string{}
	if len(changed) == 0 {
		return out
	}
	seen := make(map[string]bool)
	form.Walk(snap.Index.Affected(changed...), func(it *form.Item, _ []*form.Item) bool {
		seen[it.LinkID] = true
		return true
	})
	for _, id := range snap.Index.LinkIDs() {
		if seen[id] {
			out = append(out, id)
		}
	}
	return out
}

func (h *Handler) send(ctx context.Context, conn *websocket.Conn, msg ServerMessage) {
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		log.Printf("live: write error: %v", err)
	}
}

func (h *Handler) sendError(ctx context.Context, conn *websocket.Conn, requestID, code, message string) {
	h.send(ctx, conn, ServerMessage{
		Type:      "error",
		RequestID: requestID,
		Data: ErrorData{
			Code:    code,
			Message: message,
		},
	})
}
