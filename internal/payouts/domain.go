// Package payouts reconciles partner bills against the payments that
// settled them. One payment frequently settles several bill rows, each of
// which repeats the payment reference, so realized totals must count every
// payment at most once however the rows arrive.
package payouts

import (
	"time"

	"github.com/evergreen-media/backstage/internal/money"
)

// PartnerPayout is one bill row as recorded by the accounting subsystem.
// A nil PaymentID means the bill is unpaid. Several rows may share a
// PaymentID when one payment covers several bills; each such row repeats
// the payment's full paid amount.
type PartnerPayout struct {
	BillNumber                string
	BillDate                  time.Time
	PartnerID                 int64
	ShowID                    int64
	BillAmount                money.Amount
	PaymentID                 *string
	DateOfPayment             *time.Time
	EffectiveBilledAmountPaid *money.Amount
}

// FlagReason classifies a payout row excluded from realized totals.
type FlagReason string

const (
	// ReasonMissingPaymentAmount marks rows with a payment reference but
	// no paid amount. They are excluded and reported, never zeroed in.
	ReasonMissingPaymentAmount FlagReason = "missing_payment_amount"
	// ReasonAmountMismatch marks rows whose paid amount disagrees with an
	// earlier row for the same payment.
	ReasonAmountMismatch FlagReason = "amount_mismatch"
)

// Flag reports one problematic payout row.
type Flag struct {
	BillNumber string     `json:"bill_number"`
	PaymentID  string     `json:"payment_id,omitempty"`
	Reason     FlagReason `json:"reason"`
	Detail     string     `json:"detail,omitempty"`
}

// Summary is the reconciliation result. TotalPaid counts each unique
// payment once; TotalBilled sums every bill row. OutstandingBilled is
// their difference, negatives preserved.
type Summary struct {
	TotalPaid         money.Amount
	TotalBilled       money.Amount
	OutstandingBilled money.Amount
	ByPartner         map[int64]money.Amount
	ByShow            map[int64]money.Amount
	UnpaidBills       int
	Flags             []Flag
}
