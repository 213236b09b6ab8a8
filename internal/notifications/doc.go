// Package notifications pushes submission outcomes to ntfy.
//
// Publish formats an Event plus Payload into an ntfy message using the topic
// from config.toml and degrades to a no-op when no topic is configured.
// NewPresenter adapts a Service to the orchestrator's Presenter so ready,
// failed and batch-complete signals reach the user's phone without blocking
// the event loop.
package notifications
