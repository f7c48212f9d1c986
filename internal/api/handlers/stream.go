package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/tradecraft/internal/contracts"
)

const (
	streamWriteWait = 10 * time.Second
	streamReadWait  = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Dashboard may be served from another origin (dev server)
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamMessage is one frame of the run stream
type StreamMessage struct {
	Type string `json:"type"` // start, agent_result, complete, error

	Event       *contracts.Event     `json:"event,omitempty"`
	RunID       string               `json:"run_id,omitempty"`
	Agent       contracts.Stage      `json:"agent,omitempty"`
	MessageType string               `json:"message_type,omitempty"`
	MessageID   string               `json:"message_id,omitempty"`
	Timestamp   *time.Time           `json:"timestamp,omitempty"`
	Payload     interface{}          `json:"payload,omitempty"`
	Final       bool                 `json:"final,omitempty"`
	Mode        string               `json:"mode,omitempty"`
	Result      *contracts.RunResult `json:"result,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// Stream runs the pipeline and pushes every stage as it completes.
// The event comes from the query (headline, ticker, source) or, when the
// query has no ticker, from the first client message.
// GET /api/run/stream (WebSocket)
func (h *RunHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	event, err := readStreamEvent(conn, r)
	if err != nil {
		writeFrame(conn, StreamMessage{Type: "error", Error: "Invalid event"})
		return
	}
	event = event.Normalize()
	if errs := validateRequest(r, &event); errs != nil {
		writeFrame(conn, StreamMessage{Type: "error", Error: errs[0].Message})
		return
	}

	if err := writeFrame(conn, StreamMessage{Type: "start", Event: &event, Mode: h.runner.Mode()}); err != nil {
		return
	}

	// onStage runs on this goroutine, so frames never interleave
	result, err := h.runner.Run(r.Context(), event, func(ev contracts.StageEvent) {
		ts := ev.Timestamp
		writeFrame(conn, StreamMessage{
			Type:        "agent_result",
			RunID:       ev.RunID,
			Agent:       ev.Stage,
			MessageType: ev.MessageType,
			MessageID:   ev.MessageID,
			Timestamp:   &ts,
			Payload:     ev.Payload,
			Final:       ev.Final,
		})
	})
	if err != nil {
		_, message := runErrorStatus(err)
		h.logger.WithError(err).WithTicker(event.Ticker).Error("Streamed pipeline run failed")
		writeFrame(conn, StreamMessage{Type: "error", Error: message})
		return
	}

	writeFrame(conn, StreamMessage{Type: "complete", RunID: result.RunID, Result: result})
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(streamWriteWait))
}

func readStreamEvent(conn *websocket.Conn, r *http.Request) (contracts.Event, error) {
	q := r.URL.Query()
	if q.Get("ticker") != "" {
		return contracts.Event{
			Headline: q.Get("headline"),
			Ticker:   q.Get("ticker"),
			Source:   q.Get("source"),
		}, nil
	}

	var event contracts.Event
	conn.SetReadDeadline(time.Now().Add(streamReadWait))
	err := conn.ReadJSON(&event)
	conn.SetReadDeadline(time.Time{})
	return event, err
}

func writeFrame(conn *websocket.Conn, msg StreamMessage) error {
	conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(msg)
}
