package pricing

import (
	"time"

	"github.com/angelmondragon/clinicvax-backend/pkg/db/models"
)

// Resolution is the outcome of a price lookup. Found=false is a normal
// result: the vaccine simply has no price in the table on that date.
type Resolution struct {
	Found           bool  `json:"found"`
	PriceMinorUnits int64 `json:"price_minor_units"`
	PriceID         int64 `json:"price_id,omitempty"`
}

// inWindow reports whether asOf falls within [start, end], end nil meaning open.
func inWindow(start time.Time, end *time.Time, asOf time.Time) bool {
	if start.After(asOf) {
		return false
	}
	return end == nil || !end.Before(asOf)
}

// selectEffective picks the price that applies at asOf among rows of one
// (table, vaccine). Overlapping windows resolve to the latest start date, and
// equal start dates to the highest id.
func selectEffective(rows []models.VaccinePrice, asOf time.Time) (models.VaccinePrice, bool) {
	var (
		best  models.VaccinePrice
		found bool
	)
	for _, row := range rows {
		if !row.Active || !inWindow(row.StartDate, row.EndDate, asOf) {
			continue
		}
		if !found || supersedes(row, best) {
			best = row
			found = true
		}
	}
	return best, found
}

func supersedes(candidate, current models.VaccinePrice) bool {
	if !candidate.StartDate.Equal(current.StartDate) {
		return candidate.StartDate.After(current.StartDate)
	}
	return candidate.ID > current.ID
}

// resolveAll groups rows by vaccine and resolves each requested id.
func resolveAll(rows []models.VaccinePrice, vaccineIDs []int64, asOf time.Time) map[int64]Resolution {
	byVaccine := make(map[int64][]models.VaccinePrice, len(vaccineIDs))
	for _, row := range rows {
		byVaccine[row.VaccineID] = append(byVaccine[row.VaccineID], row)
	}
	out := make(map[int64]Resolution, len(vaccineIDs))
	for _, id := range vaccineIDs {
		row, ok := selectEffective(byVaccine[id], asOf)
		if !ok {
			out[id] = Resolution{}
			continue
		}
		out[id] = Resolution{Found: true, PriceMinorUnits: row.PriceMinorUnits, PriceID: row.ID}
	}
	return out
}
