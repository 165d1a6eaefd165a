// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const pipelineTracerName = "joshua.pipeline"

// Package-level meter and assessment metrics.
var (
	meter = otel.Meter(pipelineTracerName)

	assessTotal    metric.Int64Counter
	assessFailures metric.Int64Counter
	assessDuration metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		assessTotal, err = meter.Int64Counter(
			"risk_assessments_total",
			metric.WithDescription("Total number of risk assessments"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		assessFailures, err = meter.Int64Counter(
			"risk_assessment_failures_total",
			metric.WithDescription("Total number of failed risk assessments"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		assessDuration, err = meter.Float64Histogram(
			"risk_assessment_duration_seconds",
			metric.WithDescription("Duration of full pipeline assessments"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// PipelineTracer provides OpenTelemetry tracing and metrics for
// assessment runs.
//
// Thread Safety: Safe for concurrent use.
type PipelineTracer struct {
	tracer  trace.Tracer
	logger  *slog.Logger
	tracing bool
	metrics bool
}

// NewPipelineTracer creates a tracer honoring the observability
// config. Disabled tracing yields noop spans.
func NewPipelineTracer(logger *slog.Logger, config ObservabilityConfig) *PipelineTracer {
	if logger == nil {
		logger = slog.Default()
	}
	return &PipelineTracer{
		tracer:  otel.Tracer(pipelineTracerName),
		logger:  logger,
		tracing: config.TracingEnabled,
		metrics: config.MetricsEnabled,
	}
}

// StartAssess starts the span for a full assessment.
func (t *PipelineTracer) StartAssess(ctx context.Context, factorCount, historyLen int) (context.Context, trace.Span) {
	if !t.tracing {
		return ctx, noop.Span{}
	}
	ctx, span := t.tracer.Start(ctx, "pipeline.assess",
		trace.WithAttributes(
			attribute.Int("risk.factor_count", factorCount),
			attribute.Int("risk.history_len", historyLen),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	t.logger.InfoContext(ctx, "assessment started",
		slog.Int("factors", factorCount),
		slog.Int("history", historyLen),
	)
	return ctx, span
}

// EndAssess completes the assessment span and records metrics.
func (t *PipelineTracer) EndAssess(ctx context.Context, span trace.Span, score *ComprehensiveRiskScore, elapsed time.Duration, err error) {
	if span != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		if score != nil {
			span.SetAttributes(
				attribute.Float64("risk.final_score", score.FinalScore),
				attribute.Int("risk.seconds_to_midnight", score.SecondsToMidnight),
				attribute.String("risk.level", score.RiskLevel),
				attribute.Bool("risk.bayes_converged", score.BayesConverged),
				attribute.Int("risk.warning_count", len(score.Warnings)),
			)
		}
		span.End()
	}

	if t.metrics && initMetrics() == nil {
		assessTotal.Add(ctx, 1)
		if err != nil {
			assessFailures.Add(ctx, 1)
		}
		assessDuration.Record(ctx, elapsed.Seconds(),
			metric.WithAttributes(attribute.Bool("failed", err != nil)),
		)
	}
}

// TraceStage starts a child span for one pipeline stage.
func (t *PipelineTracer) TraceStage(ctx context.Context, stage string) (context.Context, trace.Span) {
	if !t.tracing {
		return ctx, noop.Span{}
	}
	return t.tracer.Start(ctx, "pipeline."+stage)
}

// TraceDegradation records a degraded stage outcome, such as belief
// propagation hitting its iteration cap.
func (t *PipelineTracer) TraceDegradation(ctx context.Context, stage, reason string) {
	span := trace.SpanFromContext(ctx)
	if span != nil {
		span.AddEvent("degradation",
			trace.WithAttributes(
				attribute.String("stage", stage),
				attribute.String("reason", reason),
			),
		)
	}
	t.logger.Warn("pipeline stage degraded",
		slog.String("stage", stage),
		slog.String("reason", reason),
	)
}
