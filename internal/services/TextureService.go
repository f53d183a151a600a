// This file contains the TextureService, the one asynchronous boundary of the viewer: acquiring a panorama image.
//
// Loading reads the image from the asset file system, sniffs its content type and decodes its header to make sure
// the browser will be able to display it. Concurrent loads of the same reference share one read.
// Images that are not roughly 2:1 are still accepted but logged, since they will look stretched on the sphere.

package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"

	"github.com/NeRF-or-Nothing/panowalk/internal/log"
	"github.com/NeRF-or-Nothing/panowalk/internal/models/texture"
)

// Texture errors
var (
	ErrUnsupportedImage = errors.New("unsupported panorama image type")
	ErrEmptyImage       = errors.New("panorama image has no pixels")
)

// Width/height range for an equirectangular panorama.
const (
	equirectAspectMin = 1.8
	equirectAspectMax = 2.2
)

var supportedImageTypes = []string{"image/jpeg", "image/png", "image/webp"}

// TextureLoader acquires panorama images. TextureService is the production implementation.
type TextureLoader interface {
	Load(ctx context.Context, ref string) (texture.Info, error)
}

type TextureService struct {
	assets fs.FS
	group  singleflight.Group
	logger *log.Logger
}

// NewTextureService loads panoramas from assets; image references are paths inside it.
func NewTextureService(assets fs.FS, logger *log.Logger) *TextureService {
	return &TextureService{
		assets: assets,
		logger: logger,
	}
}

// Load reads and checks the image at ref. Blocks until the image is decoded or ctx is done.
func (s *TextureService) Load(ctx context.Context, ref string) (texture.Info, error) {
	ch := s.group.DoChan(ref, func() (interface{}, error) {
		return s.load(ref)
	})

	select {
	case <-ctx.Done():
		return texture.Info{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return texture.Info{}, res.Err
		}
		return res.Val.(texture.Info), nil
	}
}

func (s *TextureService) load(ref string) (texture.Info, error) {
	s.logger.Debugf("Loading panorama %s", ref)

	data, err := fs.ReadFile(s.assets, ref)
	if err != nil {
		return texture.Info{}, fmt.Errorf("failed to read panorama %s: %w", ref, err)
	}

	mime := mimetype.Detect(data)
	if !mimetype.EqualsAny(mime.String(), supportedImageTypes...) {
		return texture.Info{}, fmt.Errorf("%w: %s is %s", ErrUnsupportedImage, ref, mime.String())
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return texture.Info{}, fmt.Errorf("failed to decode panorama %s: %w", ref, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return texture.Info{}, fmt.Errorf("%w: %s", ErrEmptyImage, ref)
	}

	aspect := float64(cfg.Width) / float64(cfg.Height)
	if aspect < equirectAspectMin || aspect > equirectAspectMax {
		s.logger.Warnf("Panorama %s is %dx%d, not equirectangular (2:1)", ref, cfg.Width, cfg.Height)
	}

	s.logger.Infof("Panorama %s ready (%s, %dx%d)", ref, mime.String(), cfg.Width, cfg.Height)
	return texture.Info{MIME: mime.String(), Width: cfg.Width, Height: cfg.Height}, nil
}
