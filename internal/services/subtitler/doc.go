// Package subtitler is the HTTP client for the subtitle generation service.
//
// Submit uploads one file with its processing options and returns the
// service-assigned session id; everything after that arrives on the event
// channel. The remaining calls read service metadata and stored results.
package subtitler
