package api

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName        = "workspace-api/api"
	metricsEventName  = "request.metrics"
	severityInfo      = "INFO"
	severityWarn      = "WARN"
	severityError     = "ERROR"
	severityInfoNum   = 9
	severityWarnNum   = 13
	severityErrorNum  = 17
	errorStageAuth    = "auth"
	errorStageBody    = "decode_body"
	errorStageService = "service"
	errorStageEncode  = "encode_response"
)

// requestMetrics collects timings for one request and reports them as a
// structured log entry and a span.
type requestMetrics struct {
	logger *log.Logger
	span   trace.Span

	route string
	op    string
	start time.Time

	authDuration  time.Duration
	storeDuration time.Duration
	records       int
	errorStage    string
}

func newRequestMetrics(ctx context.Context, logger *log.Logger, route, op string) (*requestMetrics, context.Context) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, op,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("http.route", route)),
	)
	return &requestMetrics{
		logger:  logger,
		span:    span,
		route:   route,
		op:      op,
		start:   time.Now(),
		records: -1,
	}, ctx
}

func (m *requestMetrics) ObserveAuth(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.authDuration = duration
}

func (m *requestMetrics) ObserveStore(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.storeDuration = duration
}

// SetRecords records how many records the response carries.
func (m *requestMetrics) SetRecords(count int) {
	if count < 0 {
		count = 0
	}
	m.records = count
}

func (m *requestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// Log emits the request entry and ends the span. It must be called once.
func (m *requestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}

	total := durationToMillis(time.Since(m.start))
	severity, severityNum := severityForStatus(status, err)

	fields := log.Fields{
		"route":           m.route,
		"op":              m.op,
		"status":          status,
		"total_ms":        total,
		"severity_text":   severity,
		"severity_number": severityNum,
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.route", m.route),
		attribute.Int("http.status_code", status),
		attribute.Float64("workspace.total_ms", total),
	}

	if m.authDuration > 0 {
		fields["auth_ms"] = durationToMillis(m.authDuration)
		attrs = append(attrs, attribute.Float64("workspace.auth_ms", durationToMillis(m.authDuration)))
	}
	if m.storeDuration > 0 {
		fields["store_ms"] = durationToMillis(m.storeDuration)
		attrs = append(attrs, attribute.Float64("workspace.store_ms", durationToMillis(m.storeDuration)))
	}
	if m.records >= 0 {
		fields["records"] = m.records
		attrs = append(attrs, attribute.Int("workspace.records", m.records))
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
		attrs = append(attrs, attribute.String("workspace.error_stage", m.errorStage))
	}
	if err != nil {
		fields["error"] = err.Error()
		attrs = append(attrs, attribute.String("error.message", err.Error()))
	}

	if m.span != nil {
		if sc := m.span.SpanContext(); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
			fields["span_id"] = sc.SpanID().String()
		}
		m.span.SetAttributes(attrs...)
		m.span.AddEvent(metricsEventName, trace.WithAttributes(append(attrs, attribute.String("severity_text", severity))...))
		if severity == severityError {
			msg := http.StatusText(status)
			if err != nil {
				m.span.RecordError(err)
				msg = err.Error()
			}
			m.span.SetStatus(codes.Error, msg)
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	entry := m.logger.WithFields(fields)
	switch severity {
	case severityError:
		entry.Error(metricsEventName)
	case severityWarn:
		entry.Warn(metricsEventName)
	default:
		entry.Info(metricsEventName)
	}
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case status >= http.StatusInternalServerError:
		return severityError, severityErrorNum
	case status >= http.StatusBadRequest:
		return severityWarn, severityWarnNum
	case status == 0 && err != nil:
		return severityError, severityErrorNum
	default:
		return severityInfo, severityInfoNum
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
