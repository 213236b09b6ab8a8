// Package services defines shared utilities consumed by the orchestrator and
// the remote service integrations.
//
// Key responsibilities:
//   - Context helpers that stamp session IDs, file names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that keep failures
//     classifiable (validation, submission, processing, transport, timeout)
//     after they cross package boundaries.
//
// Use these helpers when wiring new integration code so error handling and
// observability stay uniform across the client.
package services
