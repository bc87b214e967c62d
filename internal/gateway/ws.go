package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/flemzord/quill/internal/agent"
	"github.com/flemzord/quill/internal/service"
)

type wsError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// handleWebSocket accepts a connection and serves queries on it one at a
// time: each text message is a query request, answered by its stream of
// events and a stream_complete frame. A message that does not decode as a
// request gets an error frame. The connection stays open for the next query
// until the client closes it.
func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: g.config.AllowedOrigins,
	})
	if err != nil {
		g.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer func() {
		_ = conn.Close(websocket.StatusInternalError, "unexpected close")
	}()

	ctx := r.Context()
	for {
		// Frames are decoded here rather than with wsjson.Read, which closes
		// the connection on any unmarshal failure.
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				_ = conn.Close(websocket.StatusNormalClosure, "")
			}
			return
		}
		var req service.Request
		if err := json.Unmarshal(data, &req); err != nil {
			if err := wsjson.Write(ctx, conn, wsError{Type: "error", Error: "invalid request: " + err.Error()}); err != nil {
				return
			}
			continue
		}

		if err := g.streamOver(ctx, conn, r, req); err != nil {
			g.logger.Debug("websocket consumer gone", "error", err)
			return
		}
	}
}

func (g *Gateway) streamOver(ctx context.Context, conn *websocket.Conn, r *http.Request, req service.Request) error {
	events, err := g.svc.ProcessStream(ctx, req)
	if err != nil {
		return wsjson.Write(ctx, conn, wsError{Type: "error", Error: err.Error()})
	}
	for ev := range events {
		if ev.Type == agent.EventSessionStart {
			g.auditQuery(r, ev.SessionID, req.Query)
		}
		if err := wsjson.Write(ctx, conn, ev); err != nil {
			return err
		}
	}
	return conn.Write(ctx, websocket.MessageText, streamComplete)
}
