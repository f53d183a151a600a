// This file contains the InteractionService, which turns pointer events on a hotspot into at most one navigation command.
//
// Hover is presentational only: it switches the hotspot's highlight and label. Clicks on an enabled hotspot produce
// exactly one Navigate command and are marked consumed so the browser stops the event from reaching anything
// beneath the hotspot. Disabled hotspots (no target) swallow every event without feedback.

package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/NeRF-or-Nothing/panowalk/internal/log"
	"github.com/NeRF-or-Nothing/panowalk/internal/models/hotspot"
	"github.com/NeRF-or-Nothing/panowalk/internal/models/navigation"
	"github.com/NeRF-or-Nothing/panowalk/internal/models/scene"
)

var ErrInvalidEventKind = errors.New("invalid hotspot event")

// EventKind is a pointer interaction with a hotspot.
type EventKind int

const (
	HoverEnter EventKind = iota
	HoverExit
	Click
)

func (k EventKind) String() string {
	switch k {
	case HoverEnter:
		return "hover-enter"
	case HoverExit:
		return "hover-exit"
	case Click:
		return "click"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// ParseEventKind accepts "hover-enter", "hover-exit" and "click".
func ParseEventKind(s string) (EventKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hover-enter":
		return HoverEnter, nil
	case "hover-exit":
		return HoverExit, nil
	case "click":
		return Click, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidEventKind, s)
}

// Hover is the presentational state of one hotspot.
type Hover struct {
	Active bool
	Label  string
}

// InteractionResult is what one event on one hotspot asks for. The zero value means "ignored".
type InteractionResult struct {
	// Consumed is set when the event must not propagate past the hotspot.
	Consumed bool
	Command  *navigation.Command
	Hover    *Hover
}

type InteractionService struct {
	registry *scene.Registry
	logger   *log.Logger
}

func NewInteractionService(registry *scene.Registry, logger *log.Logger) *InteractionService {
	return &InteractionService{
		registry: registry,
		logger:   logger,
	}
}

// Handle interprets kind on the hotspot described by p.
// Returns an error only when the hover label cannot be resolved, which means the registry is corrupt.
func (s *InteractionService) Handle(p hotspot.Placement, kind EventKind) (InteractionResult, error) {
	if !p.Enabled() {
		s.logger.Debugf("Ignoring %s on disabled %s hotspot", kind, p.Direction)
		return InteractionResult{}, nil
	}

	switch kind {
	case Click:
		return InteractionResult{
			Consumed: true,
			Command: &navigation.Command{
				Target:  p.TargetID,
				Trigger: triggerFor(p.Direction),
			},
		}, nil
	case HoverEnter:
		label, err := s.HoverLabel(p)
		if err != nil {
			return InteractionResult{}, err
		}
		return InteractionResult{Hover: &Hover{Active: true, Label: label}}, nil
	case HoverExit:
		return InteractionResult{Hover: &Hover{Active: false}}, nil
	}
	return InteractionResult{}, fmt.Errorf("%w: %d", ErrInvalidEventKind, int(kind))
}

// HoverLabel returns "Previous: <name>" or "Next: <name>" for the hotspot's target, read from the registry now.
func (s *InteractionService) HoverLabel(p hotspot.Placement) (string, error) {
	target, err := s.registry.Lookup(p.TargetID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s hotspot label: %w", p.Direction, err)
	}
	return p.Direction.Title() + ": " + target.Name, nil
}

func triggerFor(d hotspot.Direction) navigation.Trigger {
	if d == hotspot.Previous {
		return navigation.TriggerPrevious
	}
	return navigation.TriggerNext
}
