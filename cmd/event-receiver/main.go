// Command event-receiver is a local webhook target for fakescan analysis
// events. It logs every delivered event.
package main

import (
	"encoding/json"
	"flag"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/straja-ai/fakescan/internal/events"
)

const maxEventBytes = 1 << 20

func main() {
	addr := flag.String("addr", ":8099", "listen address for event receiver")
	failEvery := flag.Int("fail-every", 0, "answer every Nth delivery with 503 to exercise retries (0 disables)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	recv := &receiver{logger: logger, failEvery: *failEvery}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /events", recv.handleEvent)
	mux.HandleFunc("POST /", recv.handleEvent)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("event receiver listening (POST JSON to /events)", "addr", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("receiver error: %v", err)
	}
}

type receiver struct {
	logger    *slog.Logger
	failEvery int
	count     atomic.Int64
}

func (rc *receiver) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBytes))
	_ = r.Body.Close()
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	n := rc.count.Add(1)
	if rc.failEvery > 0 && n%int64(rc.failEvery) == 0 {
		rc.logger.Warn("simulated failure", "event_id", r.Header.Get("X-Event-ID"))
		http.Error(w, "simulated failure", http.StatusServiceUnavailable)
		return
	}

	var ev events.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		rc.logger.Warn("malformed event", "len", len(body), "error", err)
		http.Error(w, "malformed event", http.StatusBadRequest)
		return
	}

	rc.logger.Info("received analysis event",
		"event_id", ev.ID,
		"header_event_id", r.Header.Get("X-Event-ID"),
		"request_id", ev.RequestID,
		"file_type", ev.FileType,
		"outcome", ev.Outcome,
		"label", ev.Label,
		"confidence", ev.Confidence,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, `{"status":"ok"}`+"\n")
}
