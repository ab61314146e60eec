package live

import (
	"encoding/json"

	"github.com/matthewbaird/caseforms/internal/engine"
)

// ── Client → Server messages ────────────────────────────────────────────────

// ClientMessage is the envelope for all client-to-server WebSocket messages.
type ClientMessage struct {
	Type string          `json:"type"` // "answer", "reset", "subject", "ping"
	ID   string          `json:"id"`   // Client-assigned request ID
	Data json.RawMessage `json:"data,omitempty"`
}

// AnswerData is the payload for "answer" messages. Either one answer is
// set through LinkID and Value, or several through Answers. A null value
// clears the answer.
type AnswerData struct {
	LinkID  string         `json:"linkId,omitempty"`
	Value   any            `json:"value,omitempty"`
	Answers map[string]any `json:"answers,omitempty"`
}

// ResetData is the payload for "reset" messages. Answers replaces every
// current answer; omitted, all answers are cleared.
type ResetData struct {
	Answers   map[string]any `json:"answers,omitempty"`
	Constants map[string]any `json:"constants,omitempty"`
}

// SubjectData is the payload for "subject" messages. A null subject
// stops pruning by dataCollectedAbout.
type SubjectData struct {
	Subject *engine.Subject `json:"subject"`
}

// ── Server → Client messages ────────────────────────────────────────────────

// ServerMessage is the envelope for all server-to-client WebSocket messages.
type ServerMessage struct {
	Type      string `json:"type"`                 // "session", "state", "error", "pong"
	RequestID string `json:"request_id,omitempty"` // Echoes client ID
	Data      any    `json:"data,omitempty"`
}

// SessionData is sent once when the connection opens.
type SessionData struct {
	SessionID    string `json:"session_id"`
	DefinitionID string `json:"definition_id"`
	Revision     int64  `json:"revision"`
}

// StateData carries a full evaluation. Changed lists the answers the
// request set; Affected lists the items whose rules read them, directly or
// through other rules, including the subtrees of affected groups. Both are
// empty when the state was pushed after the definition changed.
type StateData struct {
	Revision int64         `json:"revision"`
	Changed  []string      `json:"changed"`
	Affected []string      `json:"affected"`
	State    *engine.State `json:"state"`
}

// ErrorData carries an error message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
