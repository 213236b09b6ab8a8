// Package events turns the service's push channel into a typed stream.
//
// The subtitle service announces progress, results and failures over a
// persistent connection. A Source owns that connection and delivers decoded
// Event values on a Go channel; session correlation happens downstream, so
// sources never look at session ids beyond decoding them.
//
// Three transports are supported: a WebSocket speaking Socket.IO v4 text
// framing (or plain JSON envelopes), a NATS subject, and a Redis pub/sub
// channel. The latter two carry JSON envelopes of the form
// {"event": "<name>", "data": {...}}.
package events
