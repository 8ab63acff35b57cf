package expiry

import "github.com/erazemk/shramba/internal/model"

// Lead-time windows for the Expiring Soon state. Bulk items get the longer
// one since they take longer to use up or preserve.
const (
	BulkThresholdDays    = 14
	DefaultThresholdDays = 3
)

// ThresholdDays returns the Expiring Soon window for an item.
func ThresholdDays(item model.Item) int {
	if IsBulk(item.Quantity, item.Unit) {
		return BulkThresholdDays
	}
	return DefaultThresholdDays
}

// Evaluate classifies an item's freshness as of today.
func Evaluate(item model.Item, today model.Date) model.Status {
	d := DaysUntil(item.ExpiryDate, today)
	if d < 0 {
		return model.StatusExpired
	}
	if d <= ThresholdDays(item) {
		return model.StatusExpiringSoon
	}
	return model.StatusGood
}

// Annotate returns a copy of items with Status filled in. The input slice is
// not modified.
func Annotate(items []model.Item, today model.Date) []model.Item {
	out := make([]model.Item, len(items))
	for i, item := range items {
		item.Status = Evaluate(item, today)
		out[i] = item
	}
	return out
}
