// Package poller implements the REST quote poller.
//
// The poller:
//   - Fetches quotes for a fixed symbol list on an interval
//   - Splits the list into requests of at most SymbolsPerRequest symbols
//   - Runs requests with bounded concurrency
//   - Skips the rest of a cycle once the quotes budget is exhausted
package poller
