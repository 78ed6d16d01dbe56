package prorata

import "time"

// Cycle is one billing period in a subscription schedule.
type Cycle struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"` // inclusive
	Days      int       `json:"days"`
	Amount    int64     `json:"amount"` // cents
	Prorata   bool      `json:"prorata"`
}

// FirstYearSchedule returns the twelve billing cycles that start a
// subscription: the pro-rata partial cycle from activation, followed by
// eleven full-price cycles anchored on cycleDay. Consecutive cycles are
// contiguous: each StartDate is the previous EndDate plus one day.
func FirstYearSchedule(activationDate time.Time, monthlyPrice int64, cycleDay int) ([]Cycle, error) {
	first, err := Calculate(activationDate, monthlyPrice, cycleDay)
	if err != nil {
		return nil, err
	}

	activation := midnight(activationDate)
	cycles := make([]Cycle, 0, 12)
	cycles = append(cycles, Cycle{
		StartDate: activation,
		EndDate:   first.NextBillingDate.AddDate(0, 0, -1),
		Days:      first.ProrataDays,
		Amount:    first.Amount,
		Prorata:   true,
	})

	start := first.NextBillingDate
	for i := 0; i < 11; i++ {
		end := time.Date(start.Year(), start.Month()+1, cycleDay, 0, 0, 0, 0, time.UTC)
		cycles = append(cycles, Cycle{
			StartDate: start,
			EndDate:   end.AddDate(0, 0, -1),
			Days:      int(end.Sub(start).Hours() / 24),
			Amount:    monthlyPrice,
			Prorata:   false,
		})
		start = end
	}

	return cycles, nil
}
