// Package media classifies candidate files before anything is uploaded.
//
// A Candidate is the client's view of one user-selected file. Validator
// accepts or rejects candidates against the configured MIME and extension
// allow-lists and the maximum upload size; it never touches the network and
// has no side effects. FromPath builds a Candidate from a file on disk.
package media
