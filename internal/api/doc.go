// Package api provides the Tradier brokerage REST client.
//
// REST endpoints:
//   - Production: https://api.tradier.com/v1
//   - Sandbox: https://sandbox.tradier.com/v1
//
// Streaming session endpoint (the session id is passed in the stream
// subscription payload):
//   - POST /markets/events/session
//
// Responses are decoded into packed structs with fixed-point prices. The
// client never retries; rate budgets are checked before each call and
// surface as *ratelimit.LimitedError.
package api
