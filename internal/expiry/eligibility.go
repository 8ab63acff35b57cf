package expiry

import "github.com/erazemk/shramba/internal/model"

// IsDue reports whether item should get a reminder today: the owner asked
// for one, it has not been sent for the current expiry date, there is
// somewhere to send it, and the expiry lies within the lead window but
// strictly in the future.
func IsDue(item model.Item, today model.Date) bool {
	if item.ReminderDays <= 0 || item.ReminderSent || !item.HasContact() {
		return false
	}
	d := DaysUntil(item.ExpiryDate, today)
	return d > 0 && d <= item.ReminderDays
}

// SelectDue returns the items that are due for a reminder today. It never
// marks anything; that happens only after a delivery attempt.
func SelectDue(items []model.Item, today model.Date) []model.Item {
	var due []model.Item
	for _, item := range items {
		if IsDue(item, today) {
			due = append(due, item)
		}
	}
	return due
}
