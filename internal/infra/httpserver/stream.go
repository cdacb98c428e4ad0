package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/bryanwahyu/synthpanel/internal/domain/runs"
	"github.com/bryanwahyu/synthpanel/internal/infra/progress"
)

// GET /v1/{project}/runs/{runID}/progress/stream
// Server-sent events, one "progress" event per change. The stream ends
// after a terminal status or when the client goes away.
func (r *Router) handleProgressStream(w http.ResponseWriter, req *http.Request) error {
	id, err := runID(req)
	if err != nil {
		return err
	}
	// also the ownership check
	first, err := r.runsSvc.GetProgress(req.Context(), project(req), id)
	if err != nil {
		return err
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		return errors.New("streaming unsupported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	var last runs.Progress
	emit := func(p runs.Progress) error {
		if p == last {
			return nil
		}
		last = p
		b, err := json.Marshal(p)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: progress\ndata: %s\n\n", b); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := emit(first); err != nil || first.Status.Terminal() || r.progress == nil {
		return nil
	}
	err = progress.Watch(req.Context(), r.progress, id, r.poll, emit)
	if err != nil && !errors.Is(err, context.Canceled) {
		r.log.Warn("progress stream ended", "run_id", id, "error", err)
	}
	// headers are gone, nothing left to report to the client
	return nil
}
