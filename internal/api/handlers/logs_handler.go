package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/cloudconsole/engine/internal/services"
	appErr "github.com/cloudconsole/engine/pkg/errors"
	"github.com/cloudconsole/engine/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	writeWait           = 10 * time.Second
)

type LogsHandler struct {
	svc      services.DeploymentService
	upgrader websocket.Upgrader
	poll     time.Duration
}

func NewLogsHandler(svc services.DeploymentService, poll time.Duration) *LogsHandler {
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &LogsHandler{
		svc:  svc,
		poll: poll,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Get returns the whole log, or its last lines when ?tail=N is given.
func (h *LogsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if raw := r.URL.Query().Get("tail"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, appErr.Newf(appErr.CodeInvalid, "tail must be a number, got %q", raw).WithMeta("field", "tail"))
			return
		}
		tail, err := h.svc.TailLogs(r.Context(), id, n)
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(tail))
		return
	}
	b, err := h.svc.GetLogs(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// Stream sends log chunks over a websocket as they are appended and closes once the
// deployment is no longer running and the log is drained.
func (h *LogsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.svc.GetStatus(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	log := logger.ForDeployment(id)
	ticker := time.NewTicker(h.poll)
	defer ticker.Stop()

	var offset int64
	for {
		chunk, next, err := h.svc.ReadLogs(ctx, id, offset)
		if err != nil && !appErr.IsCode(err, appErr.CodeNotFound) {
			log.Warn("log stream read failed", zap.Error(err))
			closeWith(conn, websocket.CloseInternalServerErr, "read failed")
			return
		}
		if len(chunk) > 0 {
			offset = next
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, chunk); err != nil {
				return
			}
			continue
		}

		st, err := h.svc.GetStatus(ctx, id)
		if err != nil || st.Status.Terminal() {
			if rest, _, err := h.svc.ReadLogs(ctx, id, offset); err == nil && len(rest) > 0 {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.TextMessage, rest)
			}
			closeWith(conn, websocket.CloseNormalClosure, "done")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func closeWith(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
