// Package http holds the chi handlers of the message API. Handlers decode
// the request, delegate to a service and render the reply; they carry no
// licensing logic of their own.
package http
