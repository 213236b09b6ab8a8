// Package main hosts the subpilot CLI entrypoint and command graph.
//
// The Cobra command tree turns terminal invocations into uploads against the
// transcription service, result lookups, directory watching, and
// configuration scaffolding. It centralizes configuration resolution and
// logger setup so subcommands can focus on presenting progress and results.
//
// Keep this package lean: behaviour belongs in the internal packages, and
// commands here only wire them together and render their output.
package main
