// This file contains the Registry, the keyed id -> Scene table built once at startup, and the validation that
// every registry must pass before it is handed to the rest of the viewer.
//
// A well-formed registry is a simple doubly-linked chain: ids are unique and positive, links point at scenes
// that exist, A.next == B exactly when B.prev == A, there is one head and one tail, and walking next from the
// head visits every scene once.

package scene

import (
	_ "embed"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Registry errors
var (
	ErrSceneNotFound  = errors.New("scene not found")
	ErrEmptyRegistry  = errors.New("registry has no scenes")
	ErrInvalidID      = errors.New("scene id must be positive")
	ErrDuplicateID    = errors.New("duplicate scene id")
	ErrEmptyName      = errors.New("scene has no name")
	ErrEmptyImageRef  = errors.New("scene has no image reference")
	ErrDanglingLink   = errors.New("link references an unknown scene")
	ErrAsymmetricLink = errors.New("prev/next links are not symmetric")
	ErrNoHead         = errors.New("no scene without a previous link")
	ErrMultipleHeads  = errors.New("more than one scene without a previous link")
	ErrNoTail         = errors.New("no scene without a next link")
	ErrMultipleTails  = errors.New("more than one scene without a next link")
	ErrBrokenChain    = errors.New("walking from the head does not visit every scene")
)

//go:embed scenes.yaml
var defaultScenes []byte

// Registry is the read-only collection of all scenes
type Registry struct {
	scenes map[ID]Scene
	order  []ID
}

// registryFile is the document layout of scenes.yaml.
type registryFile struct {
	Scenes []Scene `yaml:"scenes"`
}

// NewRegistry validates scenes and builds a Registry from them.
// Returns the aggregated validation error if the scenes do not form a well-formed chain.
func NewRegistry(scenes []Scene) (*Registry, error) {
	if err := Validate(scenes); err != nil {
		return nil, err
	}

	r := &Registry{
		scenes: make(map[ID]Scene, len(scenes)),
	}
	var head ID
	for _, s := range scenes {
		r.scenes[s.ID] = s
		if s.IsHead() {
			head = s.ID
		}
	}
	for id := head; id != NoScene; id = r.scenes[id].Next {
		r.order = append(r.order, id)
	}
	return r, nil
}

// Load decodes a YAML registry document and builds a Registry from it.
func Load(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode registry: %w", err)
	}
	return NewRegistry(file.Scenes)
}

// Default returns the registry compiled into the binary.
func Default() (*Registry, error) {
	return Load(defaultScenes)
}

// Lookup returns the scene with the given id, or ErrSceneNotFound.
func (r *Registry) Lookup(id ID) (Scene, error) {
	s, ok := r.scenes[id]
	if !ok {
		return Scene{}, fmt.Errorf("%w: id %d", ErrSceneNotFound, id)
	}
	return s, nil
}

// MustLookup is like Lookup but panics on a miss. Only for startup code and tests.
func (r *Registry) MustLookup(id ID) Scene {
	s, err := r.Lookup(id)
	if err != nil {
		panic(err)
	}
	return s
}

// Contains reports whether id names a scene in the registry.
func (r *Registry) Contains(id ID) bool {
	_, ok := r.scenes[id]
	return ok
}

// Head returns the first scene of the sequence.
func (r *Registry) Head() Scene {
	return r.scenes[r.order[0]]
}

// Tail returns the last scene of the sequence.
func (r *Registry) Tail() Scene {
	return r.scenes[r.order[len(r.order)-1]]
}

// Len returns the number of scenes.
func (r *Registry) Len() int {
	return len(r.order)
}

// Scenes returns every scene, ordered from head to tail.
func (r *Registry) Scenes() []Scene {
	out := make([]Scene, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.scenes[id])
	}
	return out
}

// Validate checks that scenes form a well-formed chain. Every violation found is reported, combined with multierr.
func Validate(scenes []Scene) error {
	if len(scenes) == 0 {
		return ErrEmptyRegistry
	}

	var err error
	byID := make(map[ID]Scene, len(scenes))
	accepted := make([]Scene, 0, len(scenes))
	for _, s := range scenes {
		if !s.ID.Valid() {
			err = multierr.Append(err, fmt.Errorf("%w: %d", ErrInvalidID, s.ID))
			continue
		}
		if _, dup := byID[s.ID]; dup {
			err = multierr.Append(err, fmt.Errorf("%w: %d", ErrDuplicateID, s.ID))
			continue
		}
		byID[s.ID] = s
		accepted = append(accepted, s)
		if s.Name == "" {
			err = multierr.Append(err, fmt.Errorf("%w: id %d", ErrEmptyName, s.ID))
		}
		if s.ImageRef == "" {
			err = multierr.Append(err, fmt.Errorf("%w: id %d", ErrEmptyImageRef, s.ID))
		}
	}

	var heads, tails []ID
	for _, s := range accepted {
		if s.IsHead() {
			heads = append(heads, s.ID)
		} else if other, ok := byID[s.Prev]; !ok {
			err = multierr.Append(err, fmt.Errorf("%w: scene %d prev %d", ErrDanglingLink, s.ID, s.Prev))
		} else if other.Next != s.ID {
			err = multierr.Append(err, fmt.Errorf("%w: scene %d prev is %d but scene %d next is %d",
				ErrAsymmetricLink, s.ID, s.Prev, other.ID, other.Next))
		}

		if s.IsTail() {
			tails = append(tails, s.ID)
		} else if other, ok := byID[s.Next]; !ok {
			err = multierr.Append(err, fmt.Errorf("%w: scene %d next %d", ErrDanglingLink, s.ID, s.Next))
		} else if other.Prev != s.ID {
			err = multierr.Append(err, fmt.Errorf("%w: scene %d next is %d but scene %d prev is %d",
				ErrAsymmetricLink, s.ID, s.Next, other.ID, other.Prev))
		}
	}

	switch {
	case len(heads) == 0:
		err = multierr.Append(err, ErrNoHead)
	case len(heads) > 1:
		err = multierr.Append(err, fmt.Errorf("%w: %v", ErrMultipleHeads, heads))
	}
	switch {
	case len(tails) == 0:
		err = multierr.Append(err, ErrNoTail)
	case len(tails) > 1:
		err = multierr.Append(err, fmt.Errorf("%w: %v", ErrMultipleTails, tails))
	}
	if err != nil {
		return err
	}

	visited := make(map[ID]bool, len(byID))
	for id := heads[0]; id != NoScene && !visited[id]; id = byID[id].Next {
		visited[id] = true
	}
	if len(visited) != len(byID) {
		return fmt.Errorf("%w: visited %d of %d scenes", ErrBrokenChain, len(visited), len(byID))
	}
	return nil
}
