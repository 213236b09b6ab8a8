// Package watch turns a directory into a submission inbox.
//
// A Watcher holds an exclusive lock file inside the directory, observes it
// with fsnotify, waits until a new file has been quiet for the debounce
// window, and then hands it to the orchestrator as a single-file selection.
// Files are dispatched one at a time from a bounded backlog; while the
// orchestrator is busy the dispatcher parks until Idle is signalled.
package watch
