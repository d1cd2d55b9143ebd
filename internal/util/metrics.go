package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created from carts",
	})

	OrdersPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_paid_total",
		Help: "Total number of orders confirmed paid",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed orders",
	}, []string{"reason"})

	OrdersRefundedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_refunded_total",
		Help: "Total number of refunded orders",
	})

	WebhooksReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhooks_received_total",
		Help: "Total number of payment webhooks received",
	}, []string{"status"})

	WebhooksRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhooks_rejected_total",
		Help: "Total number of payment webhooks rejected",
	}, []string{"reason"})

	EnrollmentsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enrollments_created_total",
		Help: "Total number of enrollments created",
	})

	EnrollmentsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enrollments_cancelled_total",
		Help: "Total number of enrollments cancelled by refunds",
	})

	SeatReservationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seat_reservations_failed_total",
		Help: "Total number of failed session seat reservations",
	}, []string{"reason"})

	SeatReserveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "seat_reserve_latency_seconds",
		Help:    "Latency of seat reservation operations",
		Buckets: prometheus.DefBuckets,
	})

	DownloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "secure_link_downloads_total",
		Help: "Total number of secure link downloads served",
	})

	DownloadsDeniedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "secure_link_downloads_denied_total",
		Help: "Total number of downloads denied",
	}, []string{"reason"})

	EmailsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_emails_total",
		Help: "Total number of notification emails by outcome",
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
