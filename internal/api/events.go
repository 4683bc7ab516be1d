package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/alxne/storefront/internal/notify"
)

const (
	heartbeatInterval = 25 * time.Second
	signalBuffer      = 32
)

type eventPayload struct {
	Source notify.Source `json:"source"`
	Key    string        `json:"key,omitempty"`
}

// EventsHandler streams change signals as server-sent events. Each signal is
// written as "event: <name>" where poll signals and unknown keys use "refresh".
func (a *App) EventsHandler(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	rc := http.NewResponseController(w)

	signals := make(chan notify.Signal, signalBuffer)
	sub, err := notify.Listen(ctx, notify.Options{
		Bus:      a.bus,
		Store:    a.store,
		Interval: a.config.PollInterval,
		OnChange: func(s notify.Signal) {
			select {
			case signals <- s:
			default:
				// the client refetches on any signal, so one pending is enough
			}
		},
	})
	if err != nil {
		return err
	}
	defer sub.Stop()

	a.metrics.AddListeners(ctx, 1)
	defer a.metrics.AddListeners(ctx, -1)

	// the stream outlives the server's write timeout
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		log.Printf("[SSE] could not clear write deadline: %v", err)
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return nil
	}
	if err := rc.Flush(); err != nil {
		log.Printf("[SSE] streaming unsupported: %v", err)
		return nil
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.done:
			return nil
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
		case s := <-signals:
			if err := writeSignal(w, s); err != nil {
				return nil
			}
		}
		if err := rc.Flush(); err != nil {
			return nil
		}
	}
}

func writeSignal(w http.ResponseWriter, s notify.Signal) error {
	name := string(s.Event)
	if name == "" {
		name = "refresh"
	}
	data, err := json.Marshal(eventPayload{Source: s.Source, Key: s.Key})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
