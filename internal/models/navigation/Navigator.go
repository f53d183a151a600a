package navigation

import (
	"errors"
	"fmt"

	"github.com/NeRF-or-Nothing/panowalk/internal/models/scene"
)

var ErrUnknownScene = errors.New("navigation target is not in the registry")

// Trigger records what asked for a transition.
type Trigger int

const (
	TriggerPrevious Trigger = iota
	TriggerNext
	TriggerJump
)

func (t Trigger) String() string {
	switch t {
	case TriggerPrevious:
		return "previous"
	case TriggerNext:
		return "next"
	case TriggerJump:
		return "jump"
	default:
		return fmt.Sprintf("Trigger(%d)", int(t))
	}
}

// MarshalText encodes the trigger by name.
func (t Trigger) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Command asks the Navigator to make Target the current scene.
type Command struct {
	Target  scene.ID
	Trigger Trigger
}

// Transition is the outcome of an applied Command.
type Transition struct {
	From    scene.ID
	To      scene.ID
	Trigger Trigger
}

// Changed reports whether the current scene actually moved.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Navigator holds the current scene id. It is not safe for concurrent use; a single owner drives it.
type Navigator struct {
	registry *scene.Registry
	current  scene.ID
}

// NewNavigator starts at start, or at the registry head when start is scene.NoScene.
func NewNavigator(registry *scene.Registry, start scene.ID) (*Navigator, error) {
	if start == scene.NoScene {
		start = registry.Head().ID
	}
	if !registry.Contains(start) {
		return nil, fmt.Errorf("%w: start id %d", ErrUnknownScene, start)
	}
	return &Navigator{registry: registry, current: start}, nil
}

// Current returns the id of the current scene.
func (n *Navigator) Current() scene.ID {
	return n.current
}

// Navigate applies cmd. Unknown targets are rejected and leave the state alone; anything else is assigned,
// including the id that is already current.
func (n *Navigator) Navigate(cmd Command) (Transition, error) {
	if !n.registry.Contains(cmd.Target) {
		return Transition{}, fmt.Errorf("%w: id %d", ErrUnknownScene, cmd.Target)
	}
	t := Transition{From: n.current, To: cmd.Target, Trigger: cmd.Trigger}
	n.current = cmd.Target
	return t, nil
}
