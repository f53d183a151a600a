// Package navigation holds the viewer's only piece of mutable application state: the current scene id.
//
// The Navigator is a flat state machine with one state per registry scene and a single transition,
// Navigate. There is no history and no in-between state; animation belongs to the browser.
package navigation
