// Package app wires the vidgrab components together and manages the web
// server lifecycle.
//
// NewLicensing and NewGrabber are shared with the command-line grabber so
// both binaries gate downloads through the same persisted state.
package app
