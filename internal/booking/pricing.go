package booking

import "github.com/wizardoma/radiance-wellness/internal/catalog"

// Totals are in cents.
type Totals struct {
	ServiceSubtotal int64 `json:"service_subtotal"`
	AddOnsTotal     int64 `json:"addons_total"`
	GrandTotal      int64 `json:"grand_total"`
}

// Deposit returns percent of the grand total, rounded up to the cent.
// Percent outside (0, 100] charges the full amount.
func (t Totals) Deposit(percent int) int64 {
	if percent <= 0 || percent >= 100 {
		return t.GrandTotal
	}
	return (t.GrandTotal*int64(percent) + 99) / 100
}

// ComputeTotal prices the draft against the catalog. Add-ons missing from
// the catalog count as zero, which tolerates stale selections.
func ComputeTotal(d Draft, cat *catalog.Catalog) Totals {
	var t Totals
	if svc, ok := cat.Service(d.ServiceID); ok && d.Duration != 0 {
		guests := d.Guests
		if guests < 1 {
			guests = 1
		}
		t.ServiceSubtotal = svc.Prices[d.Duration] * int64(guests)
	}
	for _, id := range d.AddOnIDs {
		if addOn, ok := cat.AddOn(id); ok {
			t.AddOnsTotal += addOn.Price
		}
	}
	t.GrandTotal = t.ServiceSubtotal + t.AddOnsTotal
	return t
}

// LineItem is one priced row of a booking.
type LineItem struct {
	Kind      string `json:"kind"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Amount    int64  `json:"amount"`
	Minutes   int    `json:"minutes,omitempty"`
}

// LineItems itemises the draft the same way ComputeTotal sums it.
func LineItems(d Draft, cat *catalog.Catalog) []LineItem {
	var items []LineItem
	if svc, ok := cat.Service(d.ServiceID); ok && d.Duration != 0 {
		guests := d.Guests
		if guests < 1 {
			guests = 1
		}
		unit := svc.Prices[d.Duration]
		items = append(items, LineItem{
			Kind:      "service",
			ID:        svc.ID,
			Name:      svc.Name,
			Quantity:  guests,
			UnitPrice: unit,
			Amount:    unit * int64(guests),
			Minutes:   d.Duration,
		})
	}
	for _, id := range d.AddOnIDs {
		addOn, ok := cat.AddOn(id)
		if !ok {
			continue
		}
		items = append(items, LineItem{
			Kind:      "addon",
			ID:        addOn.ID,
			Name:      addOn.Name,
			Quantity:  1,
			UnitPrice: addOn.Price,
			Amount:    addOn.Price,
			Minutes:   addOn.ExtraMinutes,
		})
	}
	return items
}

// TotalMinutes is the chair time of the booking: the service duration plus
// the extra minutes of selected add-ons.
func TotalMinutes(d Draft, cat *catalog.Catalog) int {
	minutes := d.Duration
	for _, id := range d.AddOnIDs {
		if addOn, ok := cat.AddOn(id); ok {
			minutes += addOn.ExtraMinutes
		}
	}
	return minutes
}
