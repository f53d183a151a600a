// This file contains the Scene struct and its members. A Scene is one panoramic viewpoint of the walkthrough,
// linked to its neighbours by id.
//
// Scenes are decoded from the embedded scenes.yaml, so every field carries a yaml tag. Json tags are used when
// the registry is listed over the API.

package scene

import (
	"cogentcore.org/core/math32"
)

// ID identifies a scene. Valid ids are strictly positive.
type ID int

// NoScene is the link value for "no neighbour in this direction".
const NoScene ID = 0

// Valid reports whether the id could name a scene.
func (id ID) Valid() bool {
	return id > 0
}

// HotspotOverride is a custom placement for one of a scene's hotspots.
// Either field may be left out, in which case the direction default is used for it.
type HotspotOverride struct {
	Position *math32.Vector3 `yaml:"position,omitempty" json:"position,omitempty"`
	Rotation *float32        `yaml:"rotation,omitempty" json:"rotation,omitempty"`
}

// Scene represents a single panorama and its links
type Scene struct {
	ID             ID               `yaml:"id" json:"id"`
	Name           string           `yaml:"name" json:"name"`
	ImageRef       string           `yaml:"image" json:"image"`
	AnchorPosition math32.Vector3   `yaml:"anchor_position" json:"anchor_position"`
	Prev           ID               `yaml:"prev,omitempty" json:"prev"`
	Next           ID               `yaml:"next,omitempty" json:"next"`
	PrevHotspot    *HotspotOverride `yaml:"prev_hotspot,omitempty" json:"prev_hotspot,omitempty"`
	NextHotspot    *HotspotOverride `yaml:"next_hotspot,omitempty" json:"next_hotspot,omitempty"`
}

// HasPrev reports whether the scene links to a previous scene.
func (s Scene) HasPrev() bool {
	return s.Prev != NoScene
}

// HasNext reports whether the scene links to a next scene.
func (s Scene) HasNext() bool {
	return s.Next != NoScene
}

// IsHead reports whether the scene starts the sequence.
func (s Scene) IsHead() bool {
	return !s.HasPrev()
}

// IsTail reports whether the scene ends the sequence.
func (s Scene) IsTail() bool {
	return !s.HasNext()
}
