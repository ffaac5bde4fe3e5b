package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys.
const (
	AttrClientAddr = "client.address"
	AttrConnID     = "distd.conn_id"
	AttrCommand    = "distd.command"
	AttrFilename   = "distd.filename"
	AttrFileSize   = "distd.file_size"
	AttrBytes      = "distd.bytes"
	AttrReplyCode  = "distd.reply_code"
)

// Span names.
const (
	SpanGet = "distd.GET"
	SpanPut = "distd.PUT"
	SpanDel = "distd.DEL"
)

// ClientAddr returns an attribute for the peer address.
func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

// ConnID returns an attribute for the connection id.
func ConnID(id string) attribute.KeyValue {
	return attribute.String(AttrConnID, id)
}

// Filename returns an attribute for the target file.
func Filename(name string) attribute.KeyValue {
	return attribute.String(AttrFilename, name)
}

// FileSize returns an attribute for a file's size.
func FileSize(n int64) attribute.KeyValue {
	return attribute.Int64(AttrFileSize, n)
}

// Bytes returns an attribute for bytes moved.
func Bytes(n int64) attribute.KeyValue {
	return attribute.Int64(AttrBytes, n)
}

// ReplyCode returns an attribute for the reply code sent.
func ReplyCode(code int) attribute.KeyValue {
	return attribute.Int(AttrReplyCode, code)
}

// StartTransferSpan starts a server span for a file operation.
func StartTransferSpan(ctx context.Context, name, connID, clientAddr, filename string) (context.Context, trace.Span) {
	return StartSpan(ctx, name,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			ConnID(connID),
			ClientAddr(clientAddr),
			Filename(filename),
		),
	)
}

// EndTransferSpan records the outcome of a transfer and ends the span.
func EndTransferSpan(span trace.Span, code int, bytes int64, err error) {
	span.SetAttributes(ReplyCode(code), Bytes(bytes))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
