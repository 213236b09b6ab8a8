// Package preflight provides readiness checks for the transcription service
// and the local paths subpilot writes to.
//
// The CLI "subpilot status" command runs them before a user commits to a
// long batch. Checks gated by configuration (notifications, output
// directory) report "Disabled" instead of failing when turned off.
package preflight
