// Package services contains the implementation of all services used by the viewer.
//
// The services own everything that is not strictly HTTP-related. They are built in main, wired together and
// injected into the web server, which dispatches browser requests to them.
//
// Current services include:
//   - ViewerService:
//     Is the single event loop that owns the viewer session: the navigation state, hover state and texture
//     statuses. Every interaction is serialised through it.
//   - InteractionService:
//     Turns hover and click events on a hotspot into presentational hover state or a navigation command.
//   - Presenter:
//     Builds the Frame for the current scene (panorama sphere, camera epoch, hotspots, label) and hands it to a Renderer.
//   - TextureService:
//     Acquires and checks panorama images from the asset file system; the only asynchronous step.
//   - FrameBroadcaster:
//     The Renderer used in production. Keeps the latest frame and streams frames to connected browsers.
//   - AMPQService:
//     Is an ampq 0.9.1 broker-agnostic publisher that announces every navigation to other systems.
package services
