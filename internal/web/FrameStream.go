// This file contains the frame stream, a Server-Sent Events endpoint that pushes every new frame to the browser.
//
// The stream starts with the latest frame and then follows the FrameBroadcaster. A comment line is written every
// keepAliveInterval so proxies keep the connection open; a failed flush means the browser went away.

package web

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/NeRF-or-Nothing/panowalk/internal/services"
)

const keepAliveInterval = 15 * time.Second

func (s *WebServer) streamFrames(c *fiber.Ctx) error {
	s.logger.Info("Frame stream request received")

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	frames, unsubscribe := s.frames.Subscribe()
	stop := s.stopChan

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()

		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case frame, ok := <-frames:
				if !ok {
					return
				}
				if err := writeFrameEvent(w, frame); err != nil {
					s.logger.Debugf("Frame stream closed: %v", err)
					return
				}
			case <-ticker.C:
				if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					s.logger.Debugf("Frame stream closed: %v", err)
					return
				}
			}
		}
	}))

	return nil
}

// writeFrameEvent writes frame as one "frame" event and flushes it.
func writeFrameEvent(w *bufio.Writer, frame services.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to encode frame %d: %v", frame.Sequence, err)
	}
	if err := writeEvent(w, "frame", frame.Sequence, data); err != nil {
		return err
	}
	return w.Flush()
}

func writeEvent(w io.Writer, name string, id uint64, data []byte) error {
	_, err := fmt.Fprintf(w, "event: %s\nid: %d\ndata: %s\n\n", name, id, data)
	return err
}
