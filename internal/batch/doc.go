// Package batch decides which validated file is submitted next.
//
// The Scheduler keeps a FIFO backlog and allows at most one job in flight.
// A single accepted file bypasses the backlog entirely. The scheduler is not
// safe for concurrent use; the orchestrator loop owns it.
package batch
