// This file contains the expected structure of incoming requests to the API. These structs are used to
// validate incoming requests, provide a consistent interface for handling requests, and to pass data to the
// appropriate handlers.
//
// Path parameters use params tags, JSON bodies use json tags. The knownScene validation is registered by the
// web server, since it needs the scene registry.

package common

// NavigateRequest is the jump-to-scene control. It bypasses prev/next links.
type NavigateRequest struct {
	SceneID int `json:"scene_id" validate:"required,min=1,knownScene"`
}

// SceneRequest looks up one scene of the registry by id.
type SceneRequest struct {
	ID int `params:"id" validate:"required,min=1,knownScene"`
}

// HotspotEventRequest is a pointer interaction with one of the current scene's hotspots.
type HotspotEventRequest struct {
	Direction string `params:"direction" validate:"required,oneof=previous prev next"`
	Event     string `params:"event" validate:"required,oneof=hover-enter hover-exit click"`
}

// ClientLogRequest carries a browser-side problem (e.g. a refused fullscreen request) into the server log.
type ClientLogRequest struct {
	Level   string `json:"level" validate:"required,oneof=debug info warn error"`
	Message string `json:"message" validate:"required,max=2000"`
}
