package web

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NeRF-or-Nothing/panowalk/internal/log"
	"github.com/NeRF-or-Nothing/panowalk/internal/models/hotspot"
	"github.com/NeRF-or-Nothing/panowalk/internal/models/navigation"
	"github.com/NeRF-or-Nothing/panowalk/internal/models/scene"
	"github.com/NeRF-or-Nothing/panowalk/internal/models/texture"
	"github.com/NeRF-or-Nothing/panowalk/internal/services"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

type testServer struct {
	server *WebServer
	viewer *services.ViewerService
	frames *services.FrameBroadcaster
	cancel context.CancelFunc
	errs   chan error
	once   sync.Once
}

// newTestServer wires a server over a three scene walk. The viewer loop runs until the test ends.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := log.NewNop()

	registry, err := scene.NewRegistry([]scene.Scene{
		{ID: 1, Name: "Hall", ImageRef: "panoramas/hall.png", Next: 2},
		{ID: 2, Name: "Kitchen", ImageRef: "panoramas/kitchen.png", Prev: 1, Next: 3},
		{ID: 3, Name: "Garden", ImageRef: "panoramas/missing.png", Prev: 2},
	})
	require.NoError(t, err)

	pano := encodePNG(t, 64, 32)
	assets := fstest.MapFS{
		"panoramas/hall.png":    {Data: pano},
		"panoramas/kitchen.png": {Data: pano},
		"icons/footstep.png":    {Data: encodePNG(t, 8, 8)},
	}

	navigator, err := navigation.NewNavigator(registry, scene.NoScene)
	require.NoError(t, err)
	frames := services.NewFrameBroadcaster(logger)
	viewer := services.NewViewerService(
		registry,
		navigator,
		services.NewPresenter(registry, frames, "", logger),
		services.NewInteractionService(registry, logger),
		services.NewTextureService(assets, logger),
		services.NopPublisher{},
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	ts := &testServer{
		viewer: viewer,
		frames: frames,
		cancel: cancel,
		errs:   make(chan error, 1),
	}
	go func() { ts.errs <- viewer.Run(ctx) }()
	t.Cleanup(ts.stop)

	ts.server = NewWebServer(viewer, frames, registry, assets, "*", logger)
	ts.server.SetupRoutes()
	return ts
}

// stop ends the viewer loop. Safe to call more than once.
func (ts *testServer) stop() {
	ts.once.Do(func() {
		ts.cancel()
		<-ts.errs
	})
}

// waitReady blocks until the current panorama has loaded.
func (ts *testServer) waitReady(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		frame, err := ts.viewer.Frame(context.Background())
		return err == nil && frame.Panorama.Status == texture.Ready
	}, 2*time.Second, 5*time.Millisecond)
}

func (ts *testServer) do(t *testing.T, method, target string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := ts.server.app.Test(req, 2000)
	require.NoError(t, err)
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

func decodeFrame(t *testing.T, data []byte) services.Frame {
	t.Helper()
	var frame services.Frame
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func TestHealthAndRoutes(t *testing.T) {
	ts := newTestServer(t)

	res, body := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "OK", string(body))

	res, body = ts.do(t, http.MethodGet, "/routes", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), "/api/hotspots/:direction/:event")
}

func TestViewerPage(t *testing.T) {
	ts := newTestServer(t)

	res, body := ts.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.True(t, strings.HasPrefix(res.Header.Get("Content-Type"), "text/html"))
	assert.Contains(t, string(body), "/viewer.js")

	res, body = ts.do(t, http.MethodGet, "/viewer.js", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), "/api/frames")
}

func TestViewerScriptRenderingRules(t *testing.T) {
	ts := newTestServer(t)

	_, page := ts.do(t, http.MethodGet, "/", nil)
	_, script := ts.do(t, http.MethodGet, "/viewer.js", nil)

	cases := []struct {
		name string
		body []byte
		want string
	}{
		{"overlays hide the panorama", page, "background: #000; font-size"},
		{"non-ready panorama drops the sphere", script, "if (view.status !== 'ready') {\n            removeSphere();"},
		{"sphere shown only once textured", script, "mesh.visible = true;"},
		{"disabled hotspots are not picked", script, "return s.userData.enabled;"},
		{"hover resets on scene change", script, "currentSceneID = frame.scene_id;\n            hovered = null;"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Contains(t, string(tc.body), tc.want)
		})
	}
}

func TestAssets(t *testing.T) {
	ts := newTestServer(t)

	res, body := ts.do(t, http.MethodGet, "/assets/icons/footstep.png", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, encodePNG(t, 8, 8), body)

	res, _ = ts.do(t, http.MethodGet, "/assets/panoramas/missing.png", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestGetScenes(t *testing.T) {
	ts := newTestServer(t)

	res, body := ts.do(t, http.MethodGet, "/api/scenes", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var listing struct {
		Head   scene.ID      `json:"head"`
		Scenes []scene.Scene `json:"scenes"`
	}
	require.NoError(t, json.Unmarshal(body, &listing))
	assert.Equal(t, scene.ID(1), listing.Head)
	require.Len(t, listing.Scenes, 3)
	assert.Equal(t, "Hall", listing.Scenes[0].Name)
	assert.Equal(t, "Garden", listing.Scenes[2].Name)
}

func TestGetScene(t *testing.T) {
	ts := newTestServer(t)

	type placement struct {
		Direction hotspot.Direction `json:"direction"`
		TargetID  scene.ID          `json:"target_id"`
		Enabled   bool              `json:"enabled"`
	}
	type reply struct {
		Scene    scene.Scene `json:"scene"`
		Hotspots []placement `json:"hotspots"`
	}

	res, body := ts.do(t, http.MethodGet, "/api/scenes/1", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var head reply
	require.NoError(t, json.Unmarshal(body, &head))
	assert.Equal(t, "Hall", head.Scene.Name)
	require.Len(t, head.Hotspots, 2)
	assert.Equal(t, placement{Direction: hotspot.Previous, TargetID: scene.NoScene, Enabled: false}, head.Hotspots[0])
	assert.Equal(t, placement{Direction: hotspot.Next, TargetID: 2, Enabled: true}, head.Hotspots[1])

	cases := []struct {
		name   string
		target string
	}{
		{"unknown scene", "/api/scenes/9"},
		{"zero scene", "/api/scenes/0"},
		{"not a number", "/api/scenes/kitchen"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, _ := ts.do(t, http.MethodGet, tc.target, nil)
			assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		})
	}
}

func TestGetFrame(t *testing.T) {
	ts := newTestServer(t)
	ts.waitReady(t)

	res, body := ts.do(t, http.MethodGet, "/api/frame", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	frame := decodeFrame(t, body)
	assert.Equal(t, scene.ID(1), frame.SceneID)
	assert.Equal(t, "Hall", frame.SceneName)
	assert.Equal(t, "/assets/panoramas/hall.png", frame.Panorama.URL)
	assert.False(t, frame.Loading)
	assert.Len(t, frame.Hotspots, 2)
}

func TestHotspotEvents(t *testing.T) {
	ts := newTestServer(t)
	ts.waitReady(t)

	type reply struct {
		Consumed bool           `json:"consumed"`
		Frame    services.Frame `json:"frame"`
	}

	res, body := ts.do(t, http.MethodPost, "/api/hotspots/next/hover-enter", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var hover reply
	require.NoError(t, json.Unmarshal(body, &hover))
	assert.False(t, hover.Consumed)
	next, ok := hover.Frame.Hotspot(hotspot.Next)
	require.True(t, ok)
	assert.True(t, next.Hovered)
	assert.Equal(t, "Next: Kitchen", next.Label)

	res, body = ts.do(t, http.MethodPost, "/api/hotspots/previous/click", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var disabled reply
	require.NoError(t, json.Unmarshal(body, &disabled))
	assert.False(t, disabled.Consumed)
	assert.Equal(t, scene.ID(1), disabled.Frame.SceneID)

	res, body = ts.do(t, http.MethodPost, "/api/hotspots/next/click", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var click reply
	require.NoError(t, json.Unmarshal(body, &click))
	assert.True(t, click.Consumed)
	assert.Equal(t, scene.ID(2), click.Frame.SceneID)
	assert.Equal(t, "Kitchen", click.Frame.SceneName)
}

func TestHotspotEventValidation(t *testing.T) {
	ts := newTestServer(t)

	cases := []struct {
		name   string
		target string
	}{
		{"unknown direction", "/api/hotspots/sideways/click"},
		{"unknown event", "/api/hotspots/next/double-click"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, body := ts.do(t, http.MethodPost, tc.target, nil)
			assert.Equal(t, http.StatusBadRequest, res.StatusCode)
			assert.Contains(t, string(body), "error")
		})
	}
}

func TestNavigate(t *testing.T) {
	ts := newTestServer(t)

	res, body := ts.do(t, http.MethodPost, "/api/navigate", map[string]int{"scene_id": 3})
	require.Equal(t, http.StatusOK, res.StatusCode)
	frame := decodeFrame(t, body)
	assert.Equal(t, scene.ID(3), frame.SceneID)
	assert.Equal(t, "Garden", frame.SceneName)

	// panoramas/missing.png is not in the asset set
	require.Eventually(t, func() bool {
		f, err := ts.viewer.Frame(context.Background())
		return err == nil && f.Panorama.Status == texture.Failed
	}, 2*time.Second, 5*time.Millisecond)

	res, body = ts.do(t, http.MethodGet, "/api/frame", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	failed := decodeFrame(t, body)
	assert.False(t, failed.Loading)
	assert.Empty(t, failed.Hotspots)
	assert.NotEmpty(t, failed.Panorama.Error)
}

func TestNavigateValidation(t *testing.T) {
	ts := newTestServer(t)

	cases := []struct {
		name string
		body interface{}
	}{
		{"missing scene", map[string]int{}},
		{"zero scene", map[string]int{"scene_id": 0}},
		{"negative scene", map[string]int{"scene_id": -2}},
		{"unknown scene", map[string]int{"scene_id": 9}},
		{"wrong type", map[string]string{"scene_id": "two"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, _ := ts.do(t, http.MethodPost, "/api/navigate", tc.body)
			assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		})
	}
}

func TestClientLog(t *testing.T) {
	ts := newTestServer(t)

	res, _ := ts.do(t, http.MethodPost, "/api/client-log", map[string]string{
		"level":   "warn",
		"message": "fullscreen toggle failed: NotAllowedError",
	})
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	res, _ = ts.do(t, http.MethodPost, "/api/client-log", map[string]string{
		"level":   "fatal",
		"message": "nope",
	})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestStoppedViewer(t *testing.T) {
	ts := newTestServer(t)
	ts.stop()

	res, body := ts.do(t, http.MethodGet, "/api/frame", nil)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	assert.Contains(t, string(body), services.ErrViewerStopped.Error())

	res, _ = ts.do(t, http.MethodPost, "/api/navigate", map[string]int{"scene_id": 2})
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}
