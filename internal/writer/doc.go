// Package writer records decoded stream events into TimescaleDB.
//
// A Recorder copies quotes and trades out of the stream arena into owned
// records and hands them to one Writer per table. Each Writer batches rows
// and inserts them with pgx batches, flushing when the batch is full or the
// flush interval elapses.
//
// Writers are append-only. Prices are stored as scaled integers together
// with the decoder's price scale.
package writer
