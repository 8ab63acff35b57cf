package expiry

import "github.com/erazemk/shramba/internal/model"

// CategoryRule describes how a category behaves.
type CategoryRule struct {
	// OpenedShelfLifeDays is how long the item keeps once opened. Zero keeps
	// the printed expiry date.
	OpenedShelfLifeDays int `json:"opened_shelf_life_days"`

	// SuggestedReminderDays is a hint for clients filling in a new item's
	// reminder lead time. It is never applied automatically.
	SuggestedReminderDays int `json:"suggested_reminder_days"`
}

// categoryRules is the per-category rule table. Adding a category is a data
// change here plus its constant in model.
var categoryRules = map[model.Category]CategoryRule{
	model.CategoryDairy:     {OpenedShelfLifeDays: 4, SuggestedReminderDays: 2},
	model.CategoryMeat:      {OpenedShelfLifeDays: 3, SuggestedReminderDays: 1},
	model.CategoryVegetable: {OpenedShelfLifeDays: 5, SuggestedReminderDays: 2},
	model.CategoryGrain:     {SuggestedReminderDays: 7},
	model.CategoryOther:     {SuggestedReminderDays: 3},
}

// RuleFor returns the rule for a category. Unknown categories get the zero
// rule, which keeps the printed expiry date.
func RuleFor(c model.Category) CategoryRule {
	return categoryRules[c]
}

// Rules returns a copy of the full rule table.
func Rules() map[model.Category]CategoryRule {
	out := make(map[model.Category]CategoryRule, len(categoryRules))
	for c, r := range categoryRules {
		out[c] = r
	}
	return out
}

// OpenedExpiry returns the expiry date of an item of category c opened on
// openedDate, and whether the rule changes it at all.
func OpenedExpiry(c model.Category, openedDate, current model.Date) (model.Date, bool) {
	rule := RuleFor(c)
	if rule.OpenedShelfLifeDays == 0 {
		return current, false
	}
	return openedDate.AddDays(rule.OpenedShelfLifeDays), true
}

// ApplyOpened marks a sealed item as opened on openedDate and recomputes its
// expiry. It returns false and leaves the item untouched if it was already
// opened. The reminder flag is always released since the boundary moved or
// the item's situation changed.
func ApplyOpened(item *model.Item, openedDate model.Date) bool {
	if item.IsOpened {
		return false
	}

	item.IsOpened = true
	opened := openedDate
	item.OpenedDate = &opened

	if newExpiry, changed := OpenedExpiry(item.Category, openedDate, item.ExpiryDate); changed {
		item.SetExpiry(newExpiry)
	}
	item.ReminderSent = false
	return true
}
