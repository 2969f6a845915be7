package quotes

import (
	"time"

	"github.com/angelmondragon/clinicvax-backend/internal/campaigns"
	"github.com/angelmondragon/clinicvax-backend/internal/pricing"
)

// LineItem is one priced vaccine of a quote.
type LineItem struct {
	VaccineID    int64
	VaccineName  string
	ListPrice    int64
	Discount     int64
	FinalPrice   int64
	CampaignID   *int64
	MissingPrice bool
}

// Quote is the priced result for a list of vaccines. AnyMissingPrice marks the
// quote as incomplete; it must not be finalized as accepted.
type Quote struct {
	PriceTableID    int64
	AsOf            time.Time
	Items           []LineItem
	TotalList       int64
	TotalDiscount   int64
	TotalFinal      int64
	AnyMissingPrice bool
}

// assemble prices vaccineIDs in order. Duplicates are priced independently.
func assemble(vaccineIDs []int64, names map[int64]string, prices map[int64]pricing.Resolution, active *campaigns.ActiveSet) []LineItem {
	items := make([]LineItem, 0, len(vaccineIDs))
	for _, id := range vaccineIDs {
		item := LineItem{VaccineID: id, VaccineName: names[id]}
		price, ok := prices[id]
		if !ok || !price.Found {
			item.MissingPrice = true
			items = append(items, item)
			continue
		}
		item.ListPrice = price.PriceMinorUnits
		if match, ok := active.Best(id, price.PriceMinorUnits); ok {
			campaignID := match.CampaignID
			item.CampaignID = &campaignID
			item.Discount = match.DiscountMinorUnits
		}
		item.FinalPrice = item.ListPrice - item.Discount
		items = append(items, item)
	}
	return items
}

// Totals sums the line items of a quote.
func Totals(items []LineItem) (list, discount, final int64, anyMissing bool) {
	for _, item := range items {
		list += item.ListPrice
		discount += item.Discount
		final += item.FinalPrice
		if item.MissingPrice {
			anyMissing = true
		}
	}
	return list, discount, final, anyMissing
}

func newQuote(tableID int64, asOf time.Time, items []LineItem) *Quote {
	q := &Quote{PriceTableID: tableID, AsOf: asOf, Items: items}
	q.TotalList, q.TotalDiscount, q.TotalFinal, q.AnyMissingPrice = Totals(items)
	return q
}
