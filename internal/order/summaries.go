package order

import (
	"fmt"
	"strings"

	"order-agent/internal/models"
)

// buildSummaries renders the per-audience line lists stored with the order.
// Regenerated in full whenever the item list changes.
func buildSummaries(o *models.Order) models.SummaryDoc {
	var kitchen, cashier, courier []string

	for _, item := range o.Items {
		kitchen = append(kitchen, kitchenLine(item))
		cashier = append(cashier, fmt.Sprintf("Item %d: %s - R$ %.2f", item.ItemID, item.Product, item.Subtotal))
		courier = append(courier, fmt.Sprintf("Item %d: %s", item.ItemID, item.Product))
	}
	cashier = append(cashier, fmt.Sprintf("Total: R$ %.2f", o.Total))
	courier = append(courier, fmt.Sprintf("Total a receber: R$ %.2f", models.Round2(o.Total+o.DeliveryFee)))

	return models.SummaryDoc{Summaries: models.Summaries{
		Kitchen: kitchen,
		Cashier: cashier,
		Courier: courier,
	}}
}

// kitchenLine shows the preparation detail for one unit: add-ons and
// exclusion notes, one line per unit.
func kitchenLine(item models.OrderItem) string {
	line := fmt.Sprintf("Item %d: %s", item.ItemID, item.Product)
	if len(item.AddOns) > 0 {
		names := make([]string, len(item.AddOns))
		for i, ad := range item.AddOns {
			names[i] = ad.Name
		}
		line += " com " + strings.Join(names, ", ")
	}
	if item.Notes != "" {
		line += " (" + item.Notes + ")"
	}
	return line
}
