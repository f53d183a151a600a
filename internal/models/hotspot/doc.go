// Package hotspot resolves where a scene's two navigation hotspots sit and which way they face.
//
// Resolution is a pure function of a scene and a direction: per-scene overrides win, direction-keyed
// constants fill the rest. A hotspot whose target is scene.NoScene is still resolved so it can be
// drawn in its disabled state.
package hotspot
