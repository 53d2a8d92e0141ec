package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gwlsn/hawkeye/internal/jobs"
)

// keepAlive is how often an idle stream gets a comment line so proxies keep it open
const keepAlive = 15 * time.Second

// JobStream handles GET /api/jobs/stream as server-sent events. The first
// event is an init snapshot of the queue, then every job event follows.
// ?session=ID narrows both to that session's jobs.
func (h *Handler) JobStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("Access-Control-Allow-Origin", "*")

	sessionID := r.URL.Query().Get("session")
	wanted := func(job *jobs.Job) bool {
		return sessionID == "" || job == nil || job.SessionID == sessionID
	}

	// Subscribe before the snapshot so nothing falls between them
	events := h.queue.Subscribe()
	defer h.queue.Unsubscribe(events)

	snapshot := []*jobs.Job{}
	for _, job := range h.queue.GetAll() {
		if wanted(job) {
			snapshot = append(snapshot, job)
		}
	}
	send := func(v any) {
		data, err := json.Marshal(v)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
	send(map[string]any{"type": "init", "jobs": snapshot, "stats": h.queue.Stats()})

	ping := time.NewTicker(keepAlive)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.ctx.Done():
			return
		case <-ping.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case event, ok := <-events:
			if !ok {
				return
			}
			if wanted(event.Job) {
				send(event)
			}
		}
	}
}
