package tracing

import (
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanPipelineRun  = "pipeline.run"
	SpanPipelineFile = "pipeline.file"
	SpanExtractRun   = "extract.run"
	SpanExtractFile  = "extract.file"
	SpanCodegen      = "codegen.write"
	SpanSessionSave  = "session.record"
)

// Span attribute keys.
const (
	AttrFilePath       = "file.path"
	AttrFileKind       = "file.kind"
	AttrFileCount      = "file.count"
	AttrRewriteChanged = "rewrite.changed"
	AttrRewriteCached  = "rewrite.cached"
	AttrArtifactCount  = "artifact.count"
	AttrSessionID      = "session.id"
)

// Event names.
const (
	EventCacheHit       = "cache.hit"
	EventLiteralSkipped = "literal.skipped"
)

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
