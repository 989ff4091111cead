package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/anomi-sec/anomi/pkg/model"
)

const (
	// Events queued while a write was in flight are coalesced into one
	// SSE message, bounded to keep individual messages small.
	streamBatchMax = 32

	keepaliveInterval = 15 * time.Second
)

// handleLiveStream pushes classified events to the dashboard over
// server-sent events. Each subscriber gets the events published after
// it connected; delivery stops on the first write error, surfacing the
// lost connection to the client rather than papering over it.
func (s *Server) handleLiveStream(c fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	sub, cancel := s.live.Subscribe()

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer cancel()

		keepalive := time.NewTicker(keepaliveInterval)
		defer keepalive.Stop()

		for {
			select {
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				batch := []model.LiveEvent{ev}
			drain:
				for len(batch) < streamBatchMax {
					select {
					case more, ok := <-sub.Events():
						if !ok {
							break drain
						}
						batch = append(batch, more)
					default:
						break drain
					}
				}
				if !writeBatch(w, batch) {
					return
				}
			case <-keepalive.C:
				if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
}

// streamMessage is the wire envelope for one SSE delivery. Dashboard
// clients dispatch on the type field.
type streamMessage struct {
	Type string            `json:"type"`
	Data []model.LiveEvent `json:"data"`
}

func writeBatch(w *bufio.Writer, batch []model.LiveEvent) bool {
	data, err := json.Marshal(streamMessage{Type: "logs", Data: batch})
	if err != nil {
		log.Printf("[WARN] Could not marshal stream batch: %v", err)
		return true
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return false
	}
	return w.Flush() == nil
}
