// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns one stream.Session and the goroutine that polls it
//   - Creates a fresh Tradier streaming session id before every connect
//   - Waits out session backoff and rate limit refusals before reconnecting
//   - Hands every decoded event to a Handler in wire order
//   - Publishes session statistics to metrics
package connection
