// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OTPIssued counts codes generated, by purpose (registration, password_reset, login) and channel.
	OTPIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_issued_total",
			Help: "Total number of one-time codes issued",
		},
		[]string{"purpose", "channel"},
	)

	// Verifications counts verification attempts by branch (onboarding, login, reset, none) and outcome.
	Verifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_verifications_total",
			Help: "Total number of OTP verification attempts",
		},
		[]string{"branch", "outcome"},
	)

	// Deliveries counts outbound code deliveries by channel and status.
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_deliveries_total",
			Help: "Total number of OTP delivery attempts",
		},
		[]string{"channel", "status"},
	)

	AccountsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accounts_created_total",
			Help: "Total number of accounts materialized from pending identities",
		},
		[]string{"role"},
	)
)
