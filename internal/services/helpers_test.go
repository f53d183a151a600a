package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/NeRF-or-Nothing/panowalk/internal/log"
	"github.com/NeRF-or-Nothing/panowalk/internal/models/navigation"
	"github.com/NeRF-or-Nothing/panowalk/internal/models/scene"
	"github.com/NeRF-or-Nothing/panowalk/internal/models/texture"
)

var panoramaInfo = texture.Info{MIME: "image/png", Width: 512, Height: 256}

// fixtureRegistry is the linear chain 1 <-> 2 <-> 3 <-> 4.
func fixtureRegistry(t *testing.T) *scene.Registry {
	t.Helper()
	r, err := scene.NewRegistry([]scene.Scene{
		{ID: 1, Name: "One", ImageRef: "1.png", Next: 2},
		{ID: 2, Name: "Two", ImageRef: "2.png", Prev: 1, Next: 3},
		{ID: 3, Name: "Three", ImageRef: "3.png", Prev: 2, Next: 4},
		{ID: 4, Name: "Four", ImageRef: "4.png", Prev: 3},
	})
	require.NoError(t, err)
	return r
}

// recordingRenderer keeps every frame it is asked to render.
type recordingRenderer struct {
	mu     sync.Mutex
	frames []Frame
}

func (r *recordingRenderer) Render(frame Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
}

func (r *recordingRenderer) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Frame(nil), r.frames...)
}

type loadResult struct {
	info texture.Info
	err  error
}

// stubLoader answers every load at once, failing the references listed in failing.
type stubLoader struct {
	mu      sync.Mutex
	failing map[string]error
	calls   map[string]int
}

func newStubLoader() *stubLoader {
	return &stubLoader{failing: make(map[string]error), calls: make(map[string]int)}
}

func (l *stubLoader) Load(_ context.Context, ref string) (texture.Info, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls[ref]++
	if err, ok := l.failing[ref]; ok {
		return texture.Info{}, err
	}
	return panoramaInfo, nil
}

func (l *stubLoader) Calls(ref string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[ref]
}

// gatedLoader holds every load until the test releases it.
type gatedLoader struct {
	mu    sync.Mutex
	gates map[string]chan loadResult
}

func newGatedLoader() *gatedLoader {
	return &gatedLoader{gates: make(map[string]chan loadResult)}
}

func (l *gatedLoader) gate(ref string) chan loadResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.gates[ref]
	if !ok {
		ch = make(chan loadResult, 1)
		l.gates[ref] = ch
	}
	return ch
}

func (l *gatedLoader) Load(ctx context.Context, ref string) (texture.Info, error) {
	select {
	case res := <-l.gate(ref):
		return res.info, res.err
	case <-ctx.Done():
		return texture.Info{}, ctx.Err()
	}
}

func (l *gatedLoader) release(ref string) {
	l.gate(ref) <- loadResult{info: panoramaInfo}
}

// recordingPublisher keeps every navigation event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []NavigationEvent
}

func (p *recordingPublisher) Publish(event NavigationEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) Events() []NavigationEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]NavigationEvent(nil), p.events...)
}

type viewerHarness struct {
	viewer    *ViewerService
	renderer  *recordingRenderer
	publisher *recordingPublisher
	registry  *scene.Registry
	ctx       context.Context
}

// startViewer runs a viewer over the fixture registry until the test ends.
func startViewer(t *testing.T, loader TextureLoader, start scene.ID) *viewerHarness {
	t.Helper()
	logger := log.NewNop()
	registry := fixtureRegistry(t)
	navigator, err := navigation.NewNavigator(registry, start)
	require.NoError(t, err)

	h := &viewerHarness{
		renderer:  &recordingRenderer{},
		publisher: &recordingPublisher{},
		registry:  registry,
	}
	h.viewer = NewViewerService(
		registry,
		navigator,
		NewPresenter(registry, h.renderer, "", logger),
		NewInteractionService(registry, logger),
		loader,
		h.publisher,
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	h.ctx = ctx
	errs := make(chan error, 1)
	go func() { errs <- h.viewer.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-errs)
	})
	return h
}

// waitStatus blocks until the current frame's panorama reaches status.
func (h *viewerHarness) waitStatus(t *testing.T, status texture.Status) Frame {
	t.Helper()
	var frame Frame
	require.Eventually(t, func() bool {
		f, err := h.viewer.Frame(h.ctx)
		if err != nil {
			return false
		}
		frame = f
		return f.Panorama.Status == status
	}, 2*time.Second, 5*time.Millisecond)
	return frame
}
