// Package config loads the viewer's process settings: listen address, asset directory, starting scene, logging
// and the optional message broker. It does not configure the walkthrough itself; the scene registry is compiled in.
package config
