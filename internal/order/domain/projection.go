package domain

import jobcard "github.com/smallbiznis/fieldops/internal/jobcard/domain"

// JobCardStatusFor maps an order status onto the job card status it implies.
// Statuses without a job card counterpart report false and leave the card
// untouched.
func JobCardStatusFor(s Status) (jobcard.Status, bool) {
	switch s {
	case StatusAssigned:
		return jobcard.StatusOpen, true
	case StatusInProgress:
		return jobcard.StatusCheckedIn, true
	case StatusFollowUp:
		return jobcard.StatusFollowUp, true
	case StatusCompleted:
		return jobcard.StatusCompleted, true
	}
	return "", false
}

// PaymentStatusFor maps a job card payment status onto the order's.
func PaymentStatusFor(s jobcard.PaymentStatus) PaymentStatus {
	switch s {
	case jobcard.PaymentPaid:
		return PaymentPaid
	case jobcard.PaymentPartial:
		return PaymentPartial
	}
	return PaymentUnpaid
}
