// Package services implements the business logic layer of vidgrab. It sits
// between the transports (HTTP, websocket, CLI) and the licensing and
// download packages, so that every entry point enforces the same rules.
//
// # Services
//
//   - LicenseService answers the message protocol: device identity, usage
//     counter, authorization state, code verification and app config.
//   - GrabService runs one save attempt: gate, resolve, pipeline, count.
//   - Router dispatches protocol messages to LicenseService and never
//     panics through to its caller.
//   - HealthService reports store and connection health.
//
// # Conventions
//
// Services take a *slog.Logger at construction and derive a component
// logger from it. Every operation takes a context.Context. Store failures
// surface as errors matching errors.ErrStorage; they are never turned into
// authorization decisions.
package services
