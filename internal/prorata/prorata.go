// Package prorata computes partial-month activation charges and the
// recurring billing schedule that follows. All monetary values are int64
// cents; native floats never enter the arithmetic, so repeated cycles cannot
// accumulate rounding drift over a contract term.
package prorata

import (
	"errors"
	"time"
)

var (
	ErrInvalidPrice    = errors.New("invalid_monthly_price")
	ErrInvalidCycleDay = errors.New("invalid_billing_cycle_day")
	ErrInvalidDate     = errors.New("invalid_activation_date")
)

// CycleDays are the anchor days of month on which subscriptions bill.
var CycleDays = []int{1, 5, 15, 25}

// Result describes the partial-month charge at activation.
type Result struct {
	DaysInMonth     int       `json:"days_in_month"`
	DailyRate       int64     `json:"daily_rate"` // cents
	ProrataDays     int       `json:"prorata_days"`
	Amount          int64     `json:"amount"` // cents
	NextBillingDate time.Time `json:"next_billing_date"`
}

// VATResult is Result with VAT applied. VAT and Total are each rounded
// half-up after multiplication, not compounded from pre-rounded parts.
type VATResult struct {
	Result
	VATRate float64 `json:"vat_rate"`
	VAT     int64   `json:"vat"`   // cents
	Total   int64   `json:"total"` // cents, Amount + VAT
}

// Calculate computes the pro-rata charge for a service activated on
// activationDate at monthlyPrice cents, billed on cycleDay each month.
//
// The daily rate is the monthly price divided by the calendar days of the
// activation month, rounded half-up to whole cents. The charge covers every
// day from activation up to (not including) the next billing date.
func Calculate(activationDate time.Time, monthlyPrice int64, cycleDay int) (Result, error) {
	if monthlyPrice <= 0 {
		return Result{}, ErrInvalidPrice
	}
	if !validCycleDay(cycleDay) {
		return Result{}, ErrInvalidCycleDay
	}
	if activationDate.IsZero() {
		return Result{}, ErrInvalidDate
	}

	activation := midnight(activationDate)
	daysInMonth := daysIn(activation.Year(), activation.Month())
	dailyRate := divRoundHalfUp(monthlyPrice, int64(daysInMonth))

	next := nextBillingDate(activation, cycleDay)
	prorataDays := int(next.Sub(activation).Hours() / 24)

	return Result{
		DaysInMonth:     daysInMonth,
		DailyRate:       dailyRate,
		ProrataDays:     prorataDays,
		Amount:          dailyRate * int64(prorataDays),
		NextBillingDate: next,
	}, nil
}

// CalculateWithVAT applies vatRate (e.g. 0.15) on top of the pro-rata charge.
func CalculateWithVAT(activationDate time.Time, monthlyPrice int64, cycleDay int, vatRate float64) (VATResult, error) {
	if vatRate < 0 || vatRate >= 1 {
		return VATResult{}, ErrInvalidPrice
	}
	res, err := Calculate(activationDate, monthlyPrice, cycleDay)
	if err != nil {
		return VATResult{}, err
	}

	vat := applyRate(res.Amount, vatRate)
	return VATResult{
		Result:  res,
		VATRate: vatRate,
		VAT:     vat,
		Total:   res.Amount + vat,
	}, nil
}

// nextBillingDate returns the first billing anchor strictly after the
// activation day: activations on or after the anchor roll to next month.
func nextBillingDate(activation time.Time, cycleDay int) time.Time {
	if activation.Day() >= cycleDay {
		return time.Date(activation.Year(), activation.Month()+1, cycleDay, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(activation.Year(), activation.Month(), cycleDay, 0, 0, 0, 0, time.UTC)
}

func validCycleDay(day int) bool {
	for _, d := range CycleDays {
		if d == day {
			return true
		}
	}
	return false
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// divRoundHalfUp divides cents by a day count, rounding half-up.
func divRoundHalfUp(amount, divisor int64) int64 {
	return (2*amount + divisor) / (2 * divisor)
}

// applyRate multiplies cents by a rate expressed as a fraction, rounding
// half-up. The rate is converted to basis points so the multiplication stays
// in integer arithmetic.
func applyRate(amount int64, rate float64) int64 {
	basisPoints := int64(rate*10000 + 0.5)
	return (amount*basisPoints + 5000) / 10000
}
