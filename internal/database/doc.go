// Package database provides the TimescaleDB connection pool and schema used
// by the event recorder.
//
// Prices are stored as scaled integers next to the scale they were decoded
// with, so a row never depends on the recorder's configuration to be read.
package database
