package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"github.com/MeKo-Tech/cutout/internal/utils"
)

const (
	wsPongWait  = 60 * time.Second
	wsWriteWait = 10 * time.Second
)

// WebSocketMessage is a text frame sent to the client. Progress frames carry
// Percent and Stage; a result frame precedes the binary PNG.
type WebSocketMessage struct {
	Type      string  `json:"type"` // progress, result, error
	RequestID string  `json:"request_id,omitempty"`
	Percent   int     `json:"percent,omitempty"`
	Stage     string  `json:"stage,omitempty"`
	Backend   string  `json:"backend,omitempty"`
	Strategy  string  `json:"strategy,omitempty"`
	Degraded  bool    `json:"degraded,omitempty"`
	Width     int     `json:"width,omitempty"`
	Height    int     `json:"height,omitempty"`
	Ratio     float64 `json:"foreground_ratio,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return s.corsOrigin == "*" || origin == "" || origin == s.corsOrigin
		},
	}
}

// removeWebSocketHandler serves /ws/remove. The client may send a JSON
// settings text frame, then a binary image frame; the server answers with
// progress frames, a result frame and the PNG. Settings apply to the next
// image only.
func (s *Server) removeWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		s.writeErrorResponse(w, r, "Pipeline not initialized", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr, "request_id", requestIDFrom(r.Context()))
	s.handleWebSocketConnection(r, conn)
}

func (s *Server) handleWebSocketConnection(r *http.Request, conn *websocket.Conn) {
	conn.SetReadLimit(s.maxUploadMB << 20)
	extend := func() error { return conn.SetReadDeadline(time.Now().Add(s.pongWait)) }
	_ = extend()
	conn.SetPongHandler(func(string) error { return extend() })

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(s.pongWait / 2)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			}
		}
	}()

	var pending SettingsRequest
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		_ = extend()

		switch messageType {
		case websocket.TextMessage:
			var req SettingsRequest
			if err := json.Unmarshal(data, &req); err != nil {
				s.sendWebSocketMessage(conn, WebSocketMessage{Type: "error", Error: fmt.Sprintf("invalid settings: %v", err)})
				continue
			}
			pending = req
		case websocket.BinaryMessage:
			s.processWebSocketImage(r, conn, data, pending)
			pending = SettingsRequest{}
			// pongs are not read while processing
			_ = extend()
		}
	}
}

// processWebSocketImage cuts out one binary frame. Progress callbacks run on
// this goroutine, so frames are written in order.
func (s *Server) processWebSocketImage(r *http.Request, conn WebSocketConnWriter, data []byte, req SettingsRequest) {
	id := requestIDFrom(r.Context())
	fail := func(msg string) {
		requestsTotal.WithLabelValues("websocket", "error").Inc()
		s.sendWebSocketMessage(conn, WebSocketMessage{Type: "error", RequestID: id, Error: msg})
	}

	img, _, err := utils.DecodeImage(bytes.NewReader(data))
	if err != nil {
		fail(fmt.Sprintf("Failed to decode image: %v", err))
		return
	}
	settings, err := req.apply(s.defaults)
	if err != nil {
		fail(fmt.Sprintf("Invalid settings: %v", err))
		return
	}

	ctx, cancel := s.requestContext(r.Context())
	defer cancel()

	progress := func(percent int, stage string) {
		s.sendWebSocketMessage(conn, WebSocketMessage{Type: "progress", RequestID: id, Percent: percent, Stage: stage})
	}
	start := time.Now()
	res, err := s.pipeline.Process(ctx, img, settings, progress)
	if err != nil {
		fail(fmt.Sprintf("Processing failed: %v", err))
		return
	}
	recordResult("websocket", res, time.Since(start))

	var buf bytes.Buffer
	if err := utils.EncodeImage(&buf, res.Image, utils.EncodeOptions{Format: utils.FormatPNG}); err != nil {
		fail("Failed to encode image")
		return
	}
	s.sendWebSocketMessage(conn, resultMessage(id, res))
	if err := conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
		slog.Error("Failed to send WebSocket image", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

func resultMessage(id string, res *pipeline.Result) WebSocketMessage {
	return WebSocketMessage{
		Type:      "result",
		RequestID: id,
		Backend:   res.Backend,
		Strategy:  res.Strategy,
		Degraded:  res.Degraded,
		Width:     res.Width,
		Height:    res.Height,
		Ratio:     res.ForegroundRatio(),
	}
}

// sendWebSocketMessage writes msg as a JSON text frame.
func (s *Server) sendWebSocketMessage(conn WebSocketConnWriter, msg WebSocketMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal WebSocket message", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
