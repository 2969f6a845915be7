package models

// All lists every model, in dependency order, for sqlite test schemas.
func All() []any {
	return []any{
		&Vaccine{},
		&PriceTable{},
		&VaccinePrice{},
		&PriceCampaign{},
		&PriceCampaignVaccine{},
		&PatientBudget{},
		&PatientBudgetItem{},
		&BudgetSequence{},
		&OutboxEvent{},
	}
}
