// This file contains the FrameBroadcaster, the Renderer used in production. It remembers the latest frame and fans
// every new frame out to the connected browsers.
//
// Each subscriber has a one-slot buffer. A slow browser only ever misses intermediate frames, never the latest one,
// so after a second navigation nothing older than the newest scene can be drawn.

package services

import (
	"sync"

	"github.com/NeRF-or-Nothing/panowalk/internal/log"
)

type FrameBroadcaster struct {
	mu          sync.Mutex
	latest      Frame
	hasFrame    bool
	subscribers map[chan Frame]struct{}
	logger      *log.Logger
}

func NewFrameBroadcaster(logger *log.Logger) *FrameBroadcaster {
	return &FrameBroadcaster{
		subscribers: make(map[chan Frame]struct{}),
		logger:      logger,
	}
}

// Render stores frame as the latest and offers it to every subscriber.
func (b *FrameBroadcaster) Render(frame Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.latest = frame
	b.hasFrame = true
	for ch := range b.subscribers {
		offer(ch, frame)
	}
}

// Latest returns the most recently rendered frame, if any.
func (b *FrameBroadcaster) Latest() (Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest, b.hasFrame
}

// Subscribe registers a new receiver. The latest frame, if there is one, is waiting on the channel straight away.
// The returned function unsubscribes and closes the channel; it is safe to call more than once.
func (b *FrameBroadcaster) Subscribe() (<-chan Frame, func()) {
	ch := make(chan Frame, 1)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	if b.hasFrame {
		ch <- b.latest
	}
	count := len(b.subscribers)
	b.mu.Unlock()

	b.logger.Infof("Frame subscriber connected (%d total)", count)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, ch)
			close(ch)
			count := len(b.subscribers)
			b.mu.Unlock()
			b.logger.Infof("Frame subscriber disconnected (%d total)", count)
		})
	}
}

// Subscribers returns the number of connected receivers.
func (b *FrameBroadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// offer replaces whatever is buffered in ch with frame.
func offer(ch chan Frame, frame Frame) {
	select {
	case ch <- frame:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- frame:
	default:
	}
}
