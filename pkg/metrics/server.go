package metrics

import "time"

// Transfer directions.
const (
	DirectionUpload   = "upload"
	DirectionDownload = "download"
)

// Transfer outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeAborted = "aborted"
)

// ServerMetrics provides observability for the distd transfer server.
//
// Implementations can collect metrics about commands, transfers and the
// connection lifecycle. This interface is optional - pass nil to disable
// metrics collection with zero overhead.
//
// Example usage:
//
//	m := prometheus.NewServerMetrics()
//	srv := server.New(cfg, st, agg, server.WithMetrics(m))
type ServerMetrics interface {
	// RecordCommand records one dispatched command.
	//
	// Parameters:
	//   - verb: Upper-cased command verb (e.g. "LIST", "GET")
	//   - code: Reply code sent for the command
	//   - duration: Time taken to handle the command
	RecordCommand(verb string, code int, duration time.Duration)

	// RecordTransferStart increments the in-flight transfer gauge.
	RecordTransferStart(direction string)

	// RecordTransferEnd decrements the in-flight transfer gauge and records
	// the outcome, payload size and duration of the transfer.
	RecordTransferEnd(direction string, outcome string, bytes int64, duration time.Duration)

	// RecordIdleEviction counts a connection closed by the idle monitor.
	RecordIdleEviction()

	// SetActiveConnections updates the current connection count.
	SetActiveConnections(count int32)

	// RecordConnectionAccepted increments the total accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the total closed connections counter.
	RecordConnectionClosed()

	// RecordConnectionForceClosed increments the force-closed connections counter.
	RecordConnectionForceClosed()
}
