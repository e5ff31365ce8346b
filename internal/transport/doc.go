// Package transport implements stream.Transport over Tradier's two
// streaming endpoints: the WebSocket feed and the HTTP chunked feed.
//
// Both run a reader goroutine per connection that hands chunks to the
// session's poll loop through a bounded channel. Read never blocks; Ready
// signals when a poll is worth making. A full channel applies backpressure
// to the socket instead of dropping data, since a dropped chunk would
// corrupt the frame that spans it.
package transport
