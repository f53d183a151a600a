// This file contains the Presenter, the boundary between the navigation model and the rendering engine.
//
// For the current scene the Presenter builds a Frame: the panorama on an inward-facing sphere, a camera reset epoch,
// the location label and, once the panorama is ready, the two hotspots from the placement resolver. Frames are handed
// to a Renderer, which in production is the FrameBroadcaster feeding the browser.
//
// The Presenter is owned by the ViewerService loop and is not safe for concurrent use.

package services

import (
	"fmt"
	"path"

	"cogentcore.org/core/math32"

	"github.com/NeRF-or-Nothing/panowalk/internal/log"
	"github.com/NeRF-or-Nothing/panowalk/internal/models/hotspot"
	"github.com/NeRF-or-Nothing/panowalk/internal/models/scene"
	"github.com/NeRF-or-Nothing/panowalk/internal/models/texture"
)

// Sphere geometry for the panorama. The X scale of -1 flips the winding so the texture faces the camera inside it.
const (
	sphereRadius         = 500
	sphereWidthSegments  = 60
	sphereHeightSegments = 40
	cameraFOV            = 75
)

// Hotspot presentation.
const (
	disabledOpacity = 0.35
	idleOpacity     = 0.8
	hoverOpacity    = 1.0
	idleScale       = 1.0
	hoverScale      = 1.2
)

const (
	DefaultAssetPrefix = "/assets/"
	DefaultIconRef     = "icons/footstep.png"
)

// Renderer is the rendering engine as seen from the Presenter.
type Renderer interface {
	Render(frame Frame)
}

// PanoramaView describes the textured sphere.
type PanoramaView struct {
	ImageRef       string         `json:"image_ref"`
	URL            string         `json:"url"`
	Status         texture.Status `json:"status"`
	Error          string         `json:"error,omitempty"`
	Width          int            `json:"width,omitempty"`
	Height         int            `json:"height,omitempty"`
	Radius         float32        `json:"radius"`
	WidthSegments  int            `json:"width_segments"`
	HeightSegments int            `json:"height_segments"`
	Scale          math32.Vector3 `json:"scale"`
}

// CameraView tells the browser where to point the camera. Orientation is reset whenever Epoch changes.
type CameraView struct {
	Epoch uint64  `json:"epoch"`
	Yaw   float32 `json:"yaw"`
	Pitch float32 `json:"pitch"`
	FOV   float32 `json:"fov"`
}

// HotspotView is one rendered hotspot.
type HotspotView struct {
	Direction hotspot.Direction `json:"direction"`
	TargetID  scene.ID          `json:"target_id"`
	Enabled   bool              `json:"enabled"`
	Position  math32.Vector3    `json:"position"`
	Rotation  float32           `json:"rotation"`
	Hovered   bool              `json:"hovered"`
	Label     string            `json:"label,omitempty"`
	Opacity   float32           `json:"opacity"`
	Scale     float32           `json:"scale"`
	IconURL   string            `json:"icon_url"`
}

// Frame is everything the browser needs to draw the current scene.
type Frame struct {
	Sequence  uint64        `json:"sequence"`
	SceneID   scene.ID      `json:"scene_id"`
	SceneName string        `json:"scene_name"`
	Location  string        `json:"location"`
	Panorama  PanoramaView  `json:"panorama"`
	Camera    CameraView    `json:"camera"`
	Loading   bool          `json:"loading"`
	Hotspots  []HotspotView `json:"hotspots"`
}

// Hotspot returns the rendered hotspot for d, if the frame has one.
func (f Frame) Hotspot(d hotspot.Direction) (HotspotView, bool) {
	for _, h := range f.Hotspots {
		if h.Direction == d {
			return h, true
		}
	}
	return HotspotView{}, false
}

// PresentInput is the state a frame is built from.
type PresentInput struct {
	SceneID scene.ID
	Texture texture.Entry
	Hover   map[hotspot.Direction]Hover
}

type Presenter struct {
	registry     *scene.Registry
	renderer     Renderer
	assetPrefix  string
	iconRef      string
	logger       *log.Logger
	lastImageRef string
	cameraEpoch  uint64
	sequence     uint64
}

// NewPresenter creates a Presenter drawing through renderer. Asset URLs are built under assetPrefix.
func NewPresenter(registry *scene.Registry, renderer Renderer, assetPrefix string, logger *log.Logger) *Presenter {
	if assetPrefix == "" {
		assetPrefix = DefaultAssetPrefix
	}
	return &Presenter{
		registry:    registry,
		renderer:    renderer,
		assetPrefix: assetPrefix,
		iconRef:     DefaultIconRef,
		logger:      logger,
	}
}

// Present builds the frame for in and renders it.
// A scene id missing from the registry is a configuration error: nothing is rendered and the error is returned.
func (p *Presenter) Present(in PresentInput) (Frame, error) {
	s, err := p.registry.Lookup(in.SceneID)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to present scene: %w", err)
	}

	if s.ImageRef != p.lastImageRef {
		p.cameraEpoch++
		p.lastImageRef = s.ImageRef
		p.logger.Debugf("Camera reset for %s (epoch %d)", s.ImageRef, p.cameraEpoch)
	}
	p.sequence++

	frame := Frame{
		Sequence:  p.sequence,
		SceneID:   s.ID,
		SceneName: s.Name,
		Location:  s.Name,
		Panorama: PanoramaView{
			ImageRef:       s.ImageRef,
			URL:            p.assetURL(s.ImageRef),
			Status:         in.Texture.Status,
			Radius:         sphereRadius,
			WidthSegments:  sphereWidthSegments,
			HeightSegments: sphereHeightSegments,
			Scale:          math32.Vec3(-1, 1, 1),
		},
		Camera: CameraView{
			Epoch: p.cameraEpoch,
			FOV:   cameraFOV,
		},
		Hotspots: []HotspotView{},
	}

	switch in.Texture.Status {
	case texture.Ready:
		frame.Panorama.Width = in.Texture.Info.Width
		frame.Panorama.Height = in.Texture.Info.Height
		for _, placement := range hotspot.ResolveBoth(s) {
			frame.Hotspots = append(frame.Hotspots, p.hotspotView(placement, in.Hover[placement.Direction]))
		}
	case texture.Failed:
		if in.Texture.Err != nil {
			frame.Panorama.Error = in.Texture.Err.Error()
		}
	default:
		frame.Loading = true
	}

	p.renderer.Render(frame)
	return frame, nil
}

func (p *Presenter) hotspotView(placement hotspot.Placement, hover Hover) HotspotView {
	v := HotspotView{
		Direction: placement.Direction,
		TargetID:  placement.TargetID,
		Enabled:   placement.Enabled(),
		Position:  placement.Position,
		Rotation:  placement.Rotation,
		Opacity:   disabledOpacity,
		Scale:     idleScale,
		IconURL:   p.assetURL(p.iconRef),
	}
	if !v.Enabled {
		return v
	}

	v.Opacity = idleOpacity
	if hover.Active {
		v.Hovered = true
		v.Label = hover.Label
		v.Opacity = hoverOpacity
		v.Scale = hoverScale
	}
	return v
}

func (p *Presenter) assetURL(ref string) string {
	return path.Join(p.assetPrefix, ref)
}
