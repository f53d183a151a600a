package hotspot

import (
	"errors"
	"fmt"
	"strings"

	"cogentcore.org/core/math32"

	"github.com/NeRF-or-Nothing/panowalk/internal/models/scene"
)

var ErrInvalidDirection = errors.New("invalid hotspot direction")

// Direction selects which of a scene's two hotspots is meant.
type Direction int

const (
	Previous Direction = iota
	Next
)

// Directions lists both directions in presentation order.
var Directions = [...]Direction{Previous, Next}

// Direction-keyed defaults, mirrored across the z (forward) axis.
var (
	DefaultPreviousPosition = math32.Vec3(-2.5, -1.6, -4)
	DefaultNextPosition     = math32.Vec3(2.5, -1.6, -4)
)

const (
	DefaultPreviousRotation float32 = math32.Pi / 2
	DefaultNextRotation     float32 = -math32.Pi / 2
)

func (d Direction) String() string {
	switch d {
	case Previous:
		return "previous"
	case Next:
		return "next"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Title is the capitalised name used in hover labels.
func (d Direction) Title() string {
	switch d {
	case Previous:
		return "Previous"
	case Next:
		return "Next"
	default:
		return d.String()
	}
}

// MarshalText encodes the direction by name so it reads naturally in JSON.
func (d Direction) MarshalText() ([]byte, error) {
	if d != Previous && d != Next {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDirection, int(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDirection accepts "previous" (or "prev") and "next", case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "previous", "prev":
		return Previous, nil
	case "next":
		return Next, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

// Placement is the resolved position, facing and target of one hotspot for one render.
type Placement struct {
	Direction Direction      `json:"direction"`
	Position  math32.Vector3 `json:"position"`
	Rotation  float32        `json:"rotation"`
	TargetID  scene.ID       `json:"target_id"`
}

// Enabled reports whether the hotspot leads anywhere. Disabled placements are still drawn, without any affordance.
func (p Placement) Enabled() bool {
	return p.TargetID != scene.NoScene
}

// Resolve computes the hotspot for direction d of scene s: the scene's override where it has one,
// the direction default otherwise.
func Resolve(s scene.Scene, d Direction) Placement {
	p := Placement{Direction: d}

	var override *scene.HotspotOverride
	switch d {
	case Previous:
		p.TargetID = s.Prev
		p.Position = DefaultPreviousPosition
		p.Rotation = DefaultPreviousRotation
		override = s.PrevHotspot
	default:
		p.TargetID = s.Next
		p.Position = DefaultNextPosition
		p.Rotation = DefaultNextRotation
		override = s.NextHotspot
	}

	if override != nil {
		if override.Position != nil {
			p.Position = *override.Position
		}
		if override.Rotation != nil {
			p.Rotation = *override.Rotation
		}
	}
	return p
}

// ResolveBoth returns the Previous and Next placements of s, in that order.
func ResolveBoth(s scene.Scene) [2]Placement {
	return [2]Placement{Resolve(s, Previous), Resolve(s, Next)}
}
