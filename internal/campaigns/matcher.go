package campaigns

import (
	"time"
)

// Match is the campaign chosen for one priced line.
type Match struct {
	CampaignID         int64 `json:"campaign_id"`
	DiscountMinorUnits int64 `json:"discount_minor_units"`
}

// Candidate is an active campaign reduced to what matching needs. A nil
// VaccineIDs set means the campaign covers every vaccine.
type Candidate struct {
	ID         int64
	Rule       DiscountRule
	VaccineIDs map[int64]struct{}
}

func (c Candidate) appliesTo(vaccineID int64) bool {
	if len(c.VaccineIDs) == 0 {
		return true
	}
	_, ok := c.VaccineIDs[vaccineID]
	return ok
}

// ActiveSet is the tenant's campaigns in effect on one date, loaded once per
// quote and matched per line without further queries.
type ActiveSet struct {
	AsOf       time.Time
	Candidates []Candidate
}

// Best returns the most favourable discount for the vaccine at listPrice.
func (s *ActiveSet) Best(vaccineID, listPrice int64) (Match, bool) {
	if s == nil {
		return Match{}, false
	}
	return SelectBest(s.Candidates, vaccineID, listPrice)
}

// SelectBest applies every candidate covering vaccineID and keeps the largest
// discount; equal discounts go to the highest campaign id. ok is false when no
// candidate covers the vaccine.
func SelectBest(candidates []Candidate, vaccineID, listPrice int64) (best Match, ok bool) {
	for _, c := range candidates {
		if c.Rule == nil || !c.appliesTo(vaccineID) {
			continue
		}
		discount := c.Rule.Discount(listPrice)
		if !ok || discount > best.DiscountMinorUnits ||
			(discount == best.DiscountMinorUnits && c.ID > best.CampaignID) {
			best = Match{CampaignID: c.ID, DiscountMinorUnits: discount}
			ok = true
		}
	}
	return best, ok
}
