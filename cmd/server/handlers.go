package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-qcm/internal/ai"
	"github.com/p-n-ai/pai-qcm/internal/app"
	"github.com/p-n-ai/pai-qcm/internal/export"
	"github.com/p-n-ai/pai-qcm/internal/generative"
	"github.com/p-n-ai/pai-qcm/internal/picto"
	"github.com/p-n-ai/pai-qcm/internal/pipeline"
	"github.com/p-n-ai/pai-qcm/internal/qcm"
	"github.com/p-n-ai/pai-qcm/internal/worksheet"
)

const (
	maxBodyBytes = 1 << 20
	maxTextRunes = 5000
)

type handlers struct {
	app *app.App
}

type generateRequest struct {
	Text          string `json:"text"`
	Mode          string `json:"mode"` // nlp (default) or llm
	Illustrated   bool   `json:"illustrated"`
	RequirePictos *bool  `json:"require_pictos"`
}

type generateResponse struct {
	QCMs        []qcm.QCM              `json:"qcms,omitempty"`
	Illustrated []pipeline.Illustrated `json:"illustrated,omitempty"`
	Dropped     []generative.Question  `json:"dropped,omitempty"`
}

func (h *handlers) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.app.HealthCheck(ctx); err != nil {
		slog.Warn("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

func (h *handlers) generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decode(w, r, &req) {
		return
	}
	if err := checkText(req.Text); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx := r.Context()
	var (
		resp generateResponse
		err  error
	)
	switch req.Mode {
	case "", "nlp":
		resp.QCMs, err = h.app.Pipeline.Generate(ctx, req.Text)
	case "llm":
		if h.app.Producer == nil {
			writeError(w, http.StatusServiceUnavailable, errors.New("no AI provider configured"))
			return
		}
		resp.QCMs, resp.Dropped, err = h.app.Producer.Generate(ctx, req.Text)
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown mode %q", req.Mode))
		return
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	if req.Illustrated {
		resp.Illustrated, err = h.app.Pipeline.Illustrate(ctx, resp.QCMs, h.options(req.RequirePictos))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		resp.QCMs = nil
	}
	writeJSON(w, http.StatusOK, resp)
}

// stream sends each illustrated question as its own websocket message,
// then {"done": true, "count": n}.
func (h *handlers) stream(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	if err := checkText(text); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var require *bool
	if v := r.URL.Query().Get("require_pictos"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid require_pictos: %w", err))
			return
		}
		require = &b
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()
	ctx := conn.CloseRead(r.Context())

	qcms, err := h.app.Pipeline.Generate(ctx, text)
	if err != nil {
		conn.Close(websocket.StatusInternalError, truncate(err.Error()))
		return
	}

	count := 0
	err = h.app.Pipeline.Stream(ctx, qcms, h.options(require), func(il pipeline.Illustrated) error {
		count++
		return wsjson.Write(ctx, conn, il)
	})
	if err != nil {
		slog.Warn("stream aborted", "error", err, "sent", count)
		conn.Close(websocket.StatusInternalError, truncate(err.Error()))
		return
	}

	if err := wsjson.Write(ctx, conn, map[string]any{"done": true, "count": count}); err != nil {
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func (h *handlers) resolvePicto(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	term := strings.TrimSpace(q.Get("term"))
	if term == "" {
		writeError(w, http.StatusBadRequest, errors.New("term is required"))
		return
	}

	var (
		p   *picto.ResolvedPicto
		err error
	)
	if strict, _ := strconv.ParseBool(q.Get("strict")); strict {
		p, err = h.app.Resolver.ResolveStrict(r.Context(), term, q.Get("type"))
	} else {
		p, err = h.app.Resolver.Resolve(r.Context(), term)
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("no pictogram for %q", term))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type sentencesRequest struct {
	Paragraphs int `json:"paragraphs"`
	Complexity int `json:"complexity"`
}

func (h *handlers) sentences(w http.ResponseWriter, r *http.Request) {
	if h.app.Producer == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("no AI provider configured"))
		return
	}
	req := sentencesRequest{Paragraphs: 1, Complexity: 1}
	if !decode(w, r, &req) {
		return
	}
	if req.Paragraphs < 1 || req.Paragraphs > generative.MaxParagraphs || req.Complexity < 1 || req.Complexity > 5 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("paragraphs must be 1 to %d and complexity 1 to 5", generative.MaxParagraphs))
		return
	}

	text, err := h.app.Producer.GenerateText(r.Context(), req.Paragraphs, req.Complexity)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, text)
}

func (h *handlers) createWorksheet(w http.ResponseWriter, r *http.Request) {
	var ws worksheet.Worksheet
	if !decode(w, r, &ws) {
		return
	}
	if err := ws.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	id, err := h.app.Worksheets.Create(r.Context(), ws)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := h.app.Events.LogEvent(worksheet.Event{
		WorksheetID: id,
		EventType:   worksheet.EventWorksheetSaved,
		Data:        map[string]any{"items": len(ws.Items), "mode": ws.Mode},
	}); err != nil {
		slog.Warn("failed to log event", "type", worksheet.EventWorksheetSaved, "error", err)
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *handlers) listWorksheets(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit: %w", err))
			return
		}
		limit = n
	}
	list, err := h.app.Worksheets.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []worksheet.Worksheet{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handlers) getWorksheet(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (h *handlers) deleteWorksheet(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Worksheets.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) exportWorksheet(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(*ws, "xlsx")))
	if err := export.WriteXLSX(w, *ws); err != nil {
		slog.Error("worksheet export failed", "id", ws.ID, "error", err)
	}
}

type gradeRequest struct {
	Answers map[string]int `json:"answers"` // QCM id -> chosen index
}

func (h *handlers) gradeWorksheet(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req gradeRequest
	if !decode(w, r, &req) {
		return
	}

	qcms := make([]qcm.QCM, len(ws.Items))
	for i, it := range ws.Items {
		qcms[i] = it.QCM
	}
	writeJSON(w, http.StatusOK, qcm.Grade(qcms, req.Answers))
}

func (h *handlers) lookup(w http.ResponseWriter, r *http.Request) (*worksheet.Worksheet, bool) {
	ws, err := h.app.Worksheets.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return nil, false
	}
	return ws, true
}

func (h *handlers) options(require *bool) pipeline.Options {
	opts := pipeline.Options{RequirePictos: h.app.Config.Generation.RequirePictos}
	if require != nil {
		opts.RequirePictos = *require
	}
	return opts
}

func checkText(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("text is required")
	}
	if n := len([]rune(text)); n > maxTextRunes {
		return fmt.Errorf("text is %d characters, limit is %d", n, maxTextRunes)
	}
	return nil
}

func statusFor(err error) int {
	var verr *generative.ValidationError
	switch {
	case errors.Is(err, worksheet.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ai.ErrBudgetExceeded):
		return http.StatusTooManyRequests
	case errors.As(err, &verr):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// truncate keeps websocket close reasons under the 123-byte frame limit.
func truncate(reason string) string {
	if len(reason) <= 120 {
		return reason
	}
	return strings.ToValidUTF8(reason[:120], "")
}
