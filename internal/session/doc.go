// Package session tracks the single live submission and applies service
// events to it.
//
// Tracker owns the Session state machine:
//
//	Idle -> Uploading -> Processing -> Ready | Failed
//	Uploading -> Failed (acknowledgement failed)
//	any -> Idle (reset)
//
// Correlator is the only path from the event stream into the Tracker. It
// drops every event whose session id does not match the active session.
// Neither type is safe for concurrent use; the orchestrator loop owns them.
package session
