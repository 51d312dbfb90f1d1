package plan

import "strings"

// PriceCatalog maps payment processor price identifiers onto plans.
type PriceCatalog struct {
	plansByPriceID map[string]Plan
}

// NewPriceCatalog builds a catalog from the price identifiers configured for each paid plan.
func NewPriceCatalog(proPriceIDs []string, businessPriceIDs []string) PriceCatalog {
	catalog := PriceCatalog{plansByPriceID: make(map[string]Plan)}
	catalog.register(Pro, proPriceIDs)
	catalog.register(Business, businessPriceIDs)
	return catalog
}

func (catalog PriceCatalog) register(p Plan, priceIDs []string) {
	for _, priceID := range priceIDs {
		trimmed := strings.TrimSpace(priceID)
		if trimmed == "" {
			continue
		}
		catalog.plansByPriceID[trimmed] = p
	}
}

// PlanForPrice resolves a price identifier; unknown prices map to Free.
func (catalog PriceCatalog) PlanForPrice(priceID string) Plan {
	if resolved, known := catalog.plansByPriceID[strings.TrimSpace(priceID)]; known {
		return resolved
	}
	return Free
}
