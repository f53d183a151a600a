// This file contains the ViewerService, the single event loop that owns the viewer session.
//
// Every event (hotspot hovers and clicks, jump-to-scene requests, frame requests and texture load completions)
// is delivered on one channel and handled by Run, one at a time, in dispatch order. The navigation state, hover
// state, texture table and presenter are only ever touched from that goroutine, so none of them need locks.
//
// Loading a panorama is the only asynchronous step. The loop marks the image Pending, starts the load on its own
// goroutine and goes on serving events; the completion comes back as another event. Frames are always built from
// the current scene, so a completion for an image the user already navigated away from only updates the table.

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/NeRF-or-Nothing/panowalk/internal/log"
	"github.com/NeRF-or-Nothing/panowalk/internal/models/hotspot"
	"github.com/NeRF-or-Nothing/panowalk/internal/models/navigation"
	"github.com/NeRF-or-Nothing/panowalk/internal/models/scene"
	"github.com/NeRF-or-Nothing/panowalk/internal/models/texture"
)

var ErrViewerStopped = errors.New("viewer is not running")

// Loop events
type (
	hotspotEvent struct {
		direction hotspot.Direction
		kind      EventKind
	}
	jumpEvent struct {
		target scene.ID
	}
	frameRequest  struct{}
	textureLoaded struct {
		ref  string
		info texture.Info
		err  error
	}
)

type envelope struct {
	event interface{}
	reply chan viewerResult
}

type viewerResult struct {
	frame       Frame
	interaction InteractionResult
	err         error
}

type ViewerService struct {
	registry    *scene.Registry
	navigator   *navigation.Navigator
	presenter   *Presenter
	interaction *InteractionService
	loader      TextureLoader
	publisher   NavigationPublisher
	logger      *log.Logger

	requests chan envelope
	done     chan struct{}

	// owned by the Run goroutine
	textures *texture.Table
	hover    map[hotspot.Direction]Hover
	frame    Frame
}

func NewViewerService(
	registry *scene.Registry,
	navigator *navigation.Navigator,
	presenter *Presenter,
	interaction *InteractionService,
	loader TextureLoader,
	publisher NavigationPublisher,
	logger *log.Logger,
) *ViewerService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &ViewerService{
		registry:    registry,
		navigator:   navigator,
		presenter:   presenter,
		interaction: interaction,
		loader:      loader,
		publisher:   publisher,
		logger:      logger,
		requests:    make(chan envelope),
		done:        make(chan struct{}),
		textures:    texture.NewTable(),
		hover:       make(map[hotspot.Direction]Hover),
	}
}

// Run presents the starting scene and then serves events until ctx is done.
// Returns an error straight away if the starting scene cannot be presented.
func (v *ViewerService) Run(ctx context.Context) error {
	defer close(v.done)

	if _, err := v.render(ctx); err != nil {
		return err
	}
	v.logger.Infof("Viewer loop started at scene %d", v.navigator.Current())

	for {
		select {
		case <-ctx.Done():
			v.logger.Info("Viewer loop stopped")
			return nil
		case env := <-v.requests:
			res := v.dispatch(ctx, env.event)
			if env.reply != nil {
				env.reply <- res
			}
		}
	}
}

// HandleHotspot delivers a pointer event for the current scene's hotspot in direction d.
// Events are ignored while the panorama is not ready, since no hotspots are drawn then.
func (v *ViewerService) HandleHotspot(ctx context.Context, d hotspot.Direction, kind EventKind) (InteractionResult, Frame, error) {
	res, err := v.call(ctx, hotspotEvent{direction: d, kind: kind})
	return res.interaction, res.frame, err
}

// JumpTo makes target the current scene directly, without following prev/next links.
func (v *ViewerService) JumpTo(ctx context.Context, target scene.ID) (Frame, error) {
	res, err := v.call(ctx, jumpEvent{target: target})
	return res.frame, err
}

// Frame returns the most recently presented frame.
func (v *ViewerService) Frame(ctx context.Context) (Frame, error) {
	res, err := v.call(ctx, frameRequest{})
	return res.frame, err
}

func (v *ViewerService) call(ctx context.Context, event interface{}) (viewerResult, error) {
	reply := make(chan viewerResult, 1)
	select {
	case v.requests <- envelope{event: event, reply: reply}:
	case <-v.done:
		return viewerResult{}, ErrViewerStopped
	case <-ctx.Done():
		return viewerResult{}, ctx.Err()
	}

	select {
	case res := <-reply:
		return res, res.err
	case <-ctx.Done():
		return viewerResult{}, ctx.Err()
	}
}

func (v *ViewerService) dispatch(ctx context.Context, event interface{}) viewerResult {
	switch ev := event.(type) {
	case hotspotEvent:
		return v.handleHotspot(ctx, ev)
	case jumpEvent:
		if err := v.navigate(ctx, navigation.Command{Target: ev.target, Trigger: navigation.TriggerJump}); err != nil {
			return viewerResult{frame: v.frame, err: err}
		}
		frame, err := v.render(ctx)
		return viewerResult{frame: frame, err: err}
	case frameRequest:
		return viewerResult{frame: v.frame}
	case textureLoaded:
		v.handleTextureLoaded(ctx, ev)
		return viewerResult{frame: v.frame}
	}
	return viewerResult{err: fmt.Errorf("unknown viewer event %T", event)}
}

func (v *ViewerService) handleHotspot(ctx context.Context, ev hotspotEvent) viewerResult {
	current, err := v.registry.Lookup(v.navigator.Current())
	if err != nil {
		v.logger.Errorf("Current scene is not in the registry: %v", err)
		return viewerResult{frame: v.frame, err: err}
	}
	if v.textures.Get(current.ImageRef).Status != texture.Ready {
		v.logger.Debugf("Ignoring %s on %s hotspot while %s is not ready", ev.kind, ev.direction, current.ImageRef)
		return viewerResult{frame: v.frame}
	}

	placement := hotspot.Resolve(current, ev.direction)
	res, err := v.interaction.Handle(placement, ev.kind)
	if err != nil {
		v.logger.Errorf("Error handling %s on %s hotspot: %v", ev.kind, ev.direction, err)
		return viewerResult{frame: v.frame, err: err}
	}

	if res.Hover != nil {
		v.hover[ev.direction] = *res.Hover
	}
	if res.Command != nil {
		if err := v.navigate(ctx, *res.Command); err != nil {
			return viewerResult{frame: v.frame, interaction: res, err: err}
		}
	}

	frame, err := v.render(ctx)
	return viewerResult{frame: frame, interaction: res, err: err}
}

// navigate applies cmd and, if the scene changed, resets hover state and announces the transition.
func (v *ViewerService) navigate(ctx context.Context, cmd navigation.Command) error {
	transition, err := v.navigator.Navigate(cmd)
	if err != nil {
		v.logger.Infof("Navigation to %d rejected: %v", cmd.Target, err)
		return err
	}
	if !transition.Changed() {
		return nil
	}

	v.logger.Infof("Navigated from scene %d to %d (%s)", transition.From, transition.To, transition.Trigger)
	v.hover = make(map[hotspot.Direction]Hover)
	v.publisher.Publish(NewNavigationEvent(transition))

	// a failed image gets another attempt each time the user comes back to it
	next := v.registry.MustLookup(transition.To)
	if v.textures.Get(next.ImageRef).Status == texture.Failed {
		v.startLoad(ctx, next.ImageRef)
	}
	return nil
}

func (v *ViewerService) handleTextureLoaded(ctx context.Context, ev textureLoaded) {
	entry := v.textures.Complete(ev.ref, ev.info, ev.err)
	if ev.err != nil {
		v.logger.Errorf("Failed to load panorama %s: %v", ev.ref, ev.err)
	}

	current, err := v.registry.Lookup(v.navigator.Current())
	if err != nil {
		v.logger.Errorf("Current scene is not in the registry: %v", err)
		return
	}
	if current.ImageRef != ev.ref {
		v.logger.Debugf("Panorama %s finished as %s after navigating away", ev.ref, entry.Status)
		return
	}
	v.render(ctx)
}

// render presents the current scene, starting its image load first if it was never requested.
func (v *ViewerService) render(ctx context.Context) (Frame, error) {
	id := v.navigator.Current()
	current, err := v.registry.Lookup(id)
	if err != nil {
		v.logger.Errorf("Refusing to render scene %d: %v", id, err)
		return v.frame, err
	}
	if v.textures.Get(current.ImageRef).Status == texture.Unknown {
		v.startLoad(ctx, current.ImageRef)
	}

	frame, err := v.presenter.Present(PresentInput{
		SceneID: id,
		Texture: v.textures.Get(current.ImageRef),
		Hover:   v.hover,
	})
	if err != nil {
		v.logger.Errorf("Refusing to render scene %d: %v", id, err)
		return v.frame, err
	}
	v.frame = frame
	return frame, nil
}

func (v *ViewerService) startLoad(ctx context.Context, ref string) {
	v.textures.MarkPending(ref)
	go func() {
		info, err := v.loader.Load(ctx, ref)
		select {
		case v.requests <- envelope{event: textureLoaded{ref: ref, info: info, err: err}}:
		case <-ctx.Done():
		}
	}()
}
