package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "at_insurance"

var (
	OTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "otp_requests_total",
		Help:      "OTP code requests by result.",
	}, []string{"result"})

	OTPVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "otp_verifications_total",
		Help:      "OTP verifications by result.",
	}, []string{"result"})

	PoliciesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "policies_created_total",
		Help:      "Policies written, split by type and whether they came from a renewal.",
	}, []string{"type", "origin"})

	ClaimsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "claims_submitted_total",
		Help:      "Claims filed by reason.",
	}, []string{"reason"})

	PaymentCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_calls_total",
		Help:      "Calls to the payment service by operation and result.",
	}, []string{"op", "result"})

	OTPSessionsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "otp_sessions_swept_total",
		Help:      "Expired OTP sessions removed by the sweep job.",
	})
)

func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
