// Package scene contains the Scene Registry: the fixed, ordered set of panoramas that make up the walkthrough.
//
// The registry is compiled into the binary (scenes.yaml is embedded) and validated once when it is built.
// After construction a Registry is read-only, so it is shared by every component without locking.
// Lookups are by ID; a miss is a configuration error, never an expected condition.
package scene
