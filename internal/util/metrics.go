package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created from parsed utterances",
	})

	OrderItemsAccumulatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_items_accumulated_total",
		Help: "Total number of validated items merged into orders",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of rejected order submissions",
	}, []string{"reason"})

	ConfirmationsRequestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "confirmations_requested_total",
		Help: "Total number of low-confidence matches sent back for confirmation",
	}, []string{"kind"})

	ParseLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "utterance_parse_latency_seconds",
		Help:    "Latency of utterance parsing and item resolution",
		Buckets: prometheus.DefBuckets,
	})

	DeliveriesQuotedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deliveries_quoted_total",
		Help: "Total number of delivery fee quotes computed",
	})

	DeliveryQuoteFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_quote_failed_total",
		Help: "Total number of failed delivery quotes",
	}, []string{"reason"})

	ChargesCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "charges_created_total",
		Help: "Total number of payment charges generated",
	}, []string{"method"})

	PaymentsConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_confirmed_total",
		Help: "Total number of payment confirmations received via webhook",
	})

	CashShortfallTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cash_shortfall_total",
		Help: "Total number of cash payments rejected for insufficient amount",
	})

	NotificationsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Total number of WhatsApp notifications sent",
	}, []string{"status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
