package quotes

import "github.com/angelmondragon/clinicvax-backend/pkg/types"

type LineItemDTO struct {
	VaccineID    int64  `json:"vaccine_id"`
	VaccineName  string `json:"vaccine_name"`
	ListPrice    int64  `json:"list_price"`
	Discount     int64  `json:"discount"`
	FinalPrice   int64  `json:"final_price"`
	CampaignID   *int64 `json:"campaign_id"`
	MissingPrice bool   `json:"missing_price"`
}

type QuoteDTO struct {
	PriceTableID    int64         `json:"price_table_id"`
	AsOf            string        `json:"as_of"`
	Items           []LineItemDTO `json:"items"`
	TotalList       int64         `json:"total_list"`
	TotalDiscount   int64         `json:"total_discount"`
	TotalFinal      int64         `json:"total_final"`
	AnyMissingPrice bool          `json:"any_missing_price"`
}

func NewQuoteDTO(q Quote) QuoteDTO {
	items := make([]LineItemDTO, 0, len(q.Items))
	for _, item := range q.Items {
		items = append(items, LineItemDTO(item))
	}
	return QuoteDTO{
		PriceTableID:    q.PriceTableID,
		AsOf:            types.FormatDate(q.AsOf),
		Items:           items,
		TotalList:       q.TotalList,
		TotalDiscount:   q.TotalDiscount,
		TotalFinal:      q.TotalFinal,
		AnyMissingPrice: q.AnyMissingPrice,
	}
}
