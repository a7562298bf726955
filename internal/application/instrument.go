package application

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/outbox"
	"github.com/Zhima-Mochi/marketplace-saga/internal/observability"
	"github.com/Zhima-Mochi/marketplace-saga/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	spanPrefix     = "UC."
	publishPeer    = "outbox"
	publishTimeout = 300 * time.Millisecond
	outcomeSuccess = "success"
	outcomeError   = "error"
	statusOK       = "OK"
)

// Instrument carries the RED instruments shared by one participant's use cases.
type Instrument struct {
	tracer observability.Tracer
	log    observability.Logger

	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewInstrument(service string, tel observability.Observability) *Instrument {
	tel = observability.OrNop(tel)
	m := tel.Metrics()
	return &Instrument{
		tracer:       tel.Tracer(),
		log:          tel.Logger().With(observability.F("service", service)),
		reqCounter:   m.Counter(observability.MUsecaseRequests),
		durHistogram: m.Histogram(observability.MUsecaseDuration),
		extCounter:   m.Counter(observability.MExternalRequests),
		extHistogram: m.Histogram(observability.MExternalRequestDuration),
	}
}

func (in *Instrument) Logger() observability.Logger { return in.log }

// Run is one use case execution. End must be deferred right after Start.
type Run struct {
	in      *Instrument
	ctx     context.Context
	span    trace.Span
	log     observability.Logger
	useCase string
	start   time.Time

	outcome string
	status  string
	fields  []observability.Field
}

// Start opens the span and derives the use case logger, which is also stored on the returned context.
func (in *Instrument) Start(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, *Run) {
	attrs = append(attrs, attribute.String("use_case", useCase))
	ctx, span := in.tracer.Start(ctx, spanPrefix+spanName, attrs...)

	logger := logctx.FromOr(ctx, in.log).With(observability.F("use_case", useCase))
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		logger = logger.With(
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	ctx = logctx.With(ctx, logger)

	return ctx, &Run{
		in:      in,
		ctx:     ctx,
		span:    span,
		log:     logger,
		useCase: useCase,
		start:   time.Now(),
		outcome: outcomeSuccess,
		status:  statusOK,
	}
}

func (r *Run) Logger() observability.Logger { return r.log }
func (r *Run) Span() trace.Span             { return r.span }

// Fail marks the run as errored with a stable status code.
func (r *Run) Fail(status string) {
	r.outcome, r.status = outcomeError, status
}

// Status records a non-error status such as NOT_ACCEPTED or DUPLICATE.
func (r *Run) Status(status string) { r.status = status }

// With adds fields to the final use_case_done line.
func (r *Run) With(fields ...observability.Field) { r.fields = append(r.fields, fields...) }

func (r *Run) End(err error) {
	lat := time.Since(r.start).Seconds()
	if err != nil && r.outcome != outcomeError {
		r.outcome = outcomeError
		if r.status == statusOK {
			r.status = "FAILED"
		}
	}

	if err != nil {
		r.span.RecordError(err)
		r.span.SetStatus(codes.Error, r.status)
	} else {
		r.span.SetStatus(codes.Ok, r.status)
	}
	r.span.End()

	r.in.reqCounter.Add(1,
		observability.L("use_case", r.useCase),
		observability.L("outcome", r.outcome),
	)
	r.in.durHistogram.Observe(lat, observability.L("use_case", r.useCase))

	fields := append([]observability.Field{
		observability.F("outcome", r.outcome),
		observability.F("status", r.status),
		observability.F("latency_seconds", lat),
	}, r.fields...)
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}
	r.log.Info("use_case_done", fields...)
}

// Publish sends e with a short timeout, recording it as an external call. A publish failure is
// attached to the run but does not fail it: local state is already committed.
func (r *Run) Publish(pub outbox.Publisher, e outbox.Event) error {
	if pub == nil || e == nil {
		return nil
	}
	endpoint := e.EventName()
	ctx, cancel := context.WithTimeout(r.ctx, publishTimeout)
	defer cancel()

	start := time.Now()
	outcome := outcomeSuccess
	err := pub.Publish(ctx, e)
	if err != nil {
		outcome = outcomeError
	} else if ctx.Err() != nil {
		outcome = "canceled"
		err = ctx.Err()
	}

	r.in.extCounter.Add(1,
		observability.L("peer", publishPeer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	r.in.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", publishPeer),
		observability.L("endpoint", endpoint),
	)

	if err != nil {
		r.span.RecordError(err)
		r.status = "EVENT_PUBLISH_FAILED"
		r.log.Warn("event_publish_failed",
			observability.F("event", endpoint),
			observability.F("error", err.Error()),
		)
		return err
	}
	r.span.AddEvent("event.published", trace.WithAttributes(attribute.String("event", endpoint)))
	return nil
}

// External times a synchronous call to peer and records it like a publish.
func (r *Run) External(peer, endpoint string, call func(ctx context.Context) error) error {
	start := time.Now()
	err := call(r.ctx)
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeError
	}
	r.in.extCounter.Add(1,
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	r.in.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
	)
	return err
}
