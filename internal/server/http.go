package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/joseph-ayodele/docbatch/internal/common"
	"github.com/joseph-ayodele/docbatch/internal/entity"
	"github.com/joseph-ayodele/docbatch/internal/export"
)

// Reports renders stored batches as XLSX.
type Reports interface {
	BatchXLSX(ctx context.Context, batchID uuid.UUID) ([]byte, error)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type httpHandler struct {
	engine   Engine
	reports  Reports
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHTTPHandler serves the JSON API and the WebSocket event stream.
// reports may be nil, in which case only live batches have reports.
func NewHTTPHandler(engine Engine, reports Reports, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &httpHandler{
		engine:  engine,
		reports: reports,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// local tool; callers are not browsers on other origins
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.health)
	mux.HandleFunc("POST /v1/batches", h.submit)
	mux.HandleFunc("GET /v1/batches/{id}", h.snapshot)
	mux.HandleFunc("POST /v1/batches/{id}/cancel", h.cancel)
	mux.HandleFunc("GET /v1/batches/{id}/events", h.events)
	mux.HandleFunc("GET /v1/batches/{id}/report.xlsx", h.report)
	return mux
}

func (h *httpHandler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *httpHandler) submit(w http.ResponseWriter, r *http.Request) {
	var spec entity.BatchSpec
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<20))
	if err := dec.Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	handle, err := h.engine.Submit(r.Context(), spec)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, handle)
}

func (h *httpHandler) snapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	snap, err := h.engine.Snapshot(id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *httpHandler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.engine.RequestCancel(id); err != nil {
		h.fail(w, err)
		return
	}
	h.logger.Info("cancel requested", "batch_id", id, "remote", r.RemoteAddr)
	writeJSON(w, http.StatusAccepted, map[string]any{"batch_id": id, "acknowledged": true})
}

func (h *httpHandler) report(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var (
		body []byte
		err  error
	)
	if snap, serr := h.engine.Snapshot(id); serr == nil {
		body, err = export.SnapshotXLSX(snap)
	} else if h.reports != nil {
		body, err = h.reports.BatchXLSX(r.Context(), id)
	} else {
		err = serr
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="batch-`+id.String()+`.xlsx"`)
	_, _ = w.Write(body)
}

// events streams one JSON event per text message and closes normally
// after batch_completed.
func (h *httpHandler) events(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	seq, err := h.engine.Subscribe(ctx, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "batch_id", id, "error", err)
		return
	}
	defer conn.Close()

	// the read side only watches for the peer going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for ev := range seq {
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(ev); err != nil {
			h.logger.Debug("websocket write failed", "batch_id", id, "error", err)
			return
		}
	}
	if ctx.Err() != nil {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "batch completed")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

func (h *httpHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("batch id must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *httpHandler) fail(w http.ResponseWriter, err error) {
	if es, ok := common.AsValidationErrors(err); ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": common.ErrValidation.Error(), "details": es})
		return
	}
	switch {
	case errors.Is(err, common.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, common.ErrSchedulerClose), errors.Is(err, common.ErrBatchRunning):
		writeError(w, http.StatusConflict, err)
	default:
		h.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
