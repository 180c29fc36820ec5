package metrics

import (
	"fmt"

	"github.com/lightningnetwork/lnd/lnrpc"
)

// Label values for the payment status and failure reason gauge vectors.
// The tables must cover every variant the compiled lnrpc package knows;
// validateLabelTables enforces that when the collector is constructed.
var paymentStatusLabels = map[lnrpc.Payment_PaymentStatus]string{
	lnrpc.Payment_UNKNOWN:   "unknown",
	lnrpc.Payment_IN_FLIGHT: "in_flight",
	lnrpc.Payment_SUCCEEDED: "succeeded",
	lnrpc.Payment_FAILED:    "failed",
	lnrpc.Payment_INITIATED: "initiated",
}

var failureReasonLabels = map[lnrpc.PaymentFailureReason]string{
	lnrpc.PaymentFailureReason_FAILURE_REASON_NONE:                      "none",
	lnrpc.PaymentFailureReason_FAILURE_REASON_TIMEOUT:                   "timeout",
	lnrpc.PaymentFailureReason_FAILURE_REASON_NO_ROUTE:                  "no_route",
	lnrpc.PaymentFailureReason_FAILURE_REASON_ERROR:                     "error",
	lnrpc.PaymentFailureReason_FAILURE_REASON_INCORRECT_PAYMENT_DETAILS: "incorrect_payment_details",
	lnrpc.PaymentFailureReason_FAILURE_REASON_INSUFFICIENT_BALANCE:      "insufficient_balance",
	lnrpc.PaymentFailureReason_FAILURE_REASON_CANCELED:                  "canceled",
}

// validateLabelTables checks both tables against the enum variants compiled
// into lnrpc. A variant without a label is a defect surfaced at startup,
// not something to paper over at scrape time.
func validateLabelTables() error {
	for v, name := range lnrpc.Payment_PaymentStatus_name {
		if _, ok := paymentStatusLabels[lnrpc.Payment_PaymentStatus(v)]; !ok {
			return fmt.Errorf("payment status %s has no label mapping", name)
		}
	}
	for v, name := range lnrpc.PaymentFailureReason_name {
		if _, ok := failureReasonLabels[lnrpc.PaymentFailureReason(v)]; !ok {
			return fmt.Errorf("payment failure reason %s has no label mapping", name)
		}
	}
	return nil
}

// paymentStatusLabel maps a payment status to its label value. A value
// outside the table (a server newer than the compiled lnrpc) is an error,
// never a defaulted label.
func paymentStatusLabel(s lnrpc.Payment_PaymentStatus) (string, error) {
	l, ok := paymentStatusLabels[s]
	if !ok {
		return "", fmt.Errorf("unmapped payment status %d (%s)", s, s)
	}
	return l, nil
}

// failureReasonLabel maps a failure reason to its label value.
func failureReasonLabel(r lnrpc.PaymentFailureReason) (string, error) {
	l, ok := failureReasonLabels[r]
	if !ok {
		return "", fmt.Errorf("unmapped payment failure reason %d (%s)", r, r)
	}
	return l, nil
}
