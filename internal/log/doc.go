// Package log contains the Logger shared by the viewer. The Logger is a thin wrapper around zap.SugaredLogger.
//
// main creates a single Logger and injects it into every service and the web server. Components may derive
// a child with Named so their entries can be told apart in the log file.
package log
