// Package otel carries the order book's OpenTelemetry instruments. Only the
// metric API is used here; installing an SDK and exporter is left to the
// embedding process.
package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/erain9/limitbook"

var (
	// bookMetrics holds the singleton instance
	bookMetrics *BookMetrics
	// meter is the global meter for order book metrics
	meter = otel.GetMeterProvider().Meter(instrumentationName)
)

// BookMetrics holds metrics for order book operations
type BookMetrics struct {
	// Orders accepted onto the book, by side
	ordersTotal metric.Int64Counter
	// Trades executed by the matching loop
	tradesTotal metric.Int64Counter
	// Quantity matched across all trades
	volumeTotal metric.Float64Counter
}

// GetBookMetrics returns the BookMetrics singleton
func GetBookMetrics() *BookMetrics {
	if bookMetrics == nil {
		ordersTotal, err := meter.Int64Counter(
			"limitbook.orders.total",
			metric.WithDescription("Total number of orders accepted"),
			metric.WithUnit("{order}"),
		)
		if err != nil {
			return &BookMetrics{}
		}

		tradesTotal, err := meter.Int64Counter(
			"limitbook.trades.total",
			metric.WithDescription("Total number of trades executed"),
			metric.WithUnit("{trade}"),
		)
		if err != nil {
			return &BookMetrics{}
		}

		volumeTotal, err := meter.Float64Counter(
			"limitbook.volume.total",
			metric.WithDescription("Total quantity matched"),
			metric.WithUnit("{lot}"),
		)
		if err != nil {
			return &BookMetrics{}
		}

		bookMetrics = &BookMetrics{
			ordersTotal: ordersTotal,
			tradesTotal: tradesTotal,
			volumeTotal: volumeTotal,
		}
	}

	return bookMetrics
}

// RecordOrderAccepted increments the accepted order counter
func (m *BookMetrics) RecordOrderAccepted(ctx context.Context, side string) {
	if m.ordersTotal == nil {
		return
	}

	m.ordersTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("order.side", side),
	))
}

// RecordTrades adds executed trades and their matched quantity
func (m *BookMetrics) RecordTrades(ctx context.Context, count int64, volume float64) {
	if m.tradesTotal == nil {
		return
	}

	m.tradesTotal.Add(ctx, count)
	m.volumeTotal.Add(ctx, volume)
}
