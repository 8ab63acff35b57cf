package model

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// Unit is the unit an item's quantity is measured in.
type Unit string

// Units. Weight and volume units are metric; pkg and pcs are counts.
const (
	UnitKilogram   Unit = "kg"
	UnitGram       Unit = "g"
	UnitLitre      Unit = "l"
	UnitMillilitre Unit = "ml"
	UnitPackage    Unit = "pkg"
	UnitPiece      Unit = "pcs"
)

// Units lists every accepted unit.
var Units = []Unit{UnitKilogram, UnitGram, UnitLitre, UnitMillilitre, UnitPackage, UnitPiece}

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool {
	for _, known := range Units {
		if u == known {
			return true
		}
	}
	return false
}

// Category groups items by how they spoil.
type Category string

// Categories.
const (
	CategoryDairy     Category = "Dairy"
	CategoryGrain     Category = "Grain"
	CategoryVegetable Category = "Vegetable"
	CategoryMeat      Category = "Meat"
	CategoryOther     Category = "Other"
)

// Categories lists every accepted category.
var Categories = []Category{CategoryDairy, CategoryGrain, CategoryVegetable, CategoryMeat, CategoryOther}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Status is the derived freshness state of an item. It is computed on every
// read and never stored.
type Status string

// Freshness states.
const (
	StatusGood         Status = "Good"
	StatusExpiringSoon Status = "Expiring Soon"
	StatusExpired      Status = "Expired"
)

// Item is a food item in a household inventory.
type Item struct {
	ID            int64     `json:"id"`
	OwnerID       int64     `json:"owner_id"`
	Name          string    `json:"name"`
	Quantity      float64   `json:"quantity"`
	Unit          Unit      `json:"unit"`
	Category      Category  `json:"category"`
	ExpiryDate    Date      `json:"expiry_date"`
	IsOpened      bool      `json:"is_opened"`
	OpenedDate    *Date     `json:"opened_date,omitempty"`
	ReminderDays  int       `json:"reminder_days"`
	ReminderEmail string    `json:"reminder_email,omitempty"`
	ReminderPhone string    `json:"reminder_phone,omitempty"`
	ReminderSent  bool      `json:"reminder_sent"`
	Status        Status    `json:"status,omitempty"`
	ImageMime     string    `json:"image_mime,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasContact reports whether at least one reminder address is set.
func (it *Item) HasContact() bool {
	return it.ReminderEmail != "" || it.ReminderPhone != ""
}

// SetExpiry is the only way to change ExpiryDate after creation. Moving the
// date releases the reminder flag so the new boundary can fire again.
func (it *Item) SetExpiry(d Date) {
	if it.ExpiryDate.Equal(d) {
		return
	}
	it.ExpiryDate = d
	it.ReminderSent = false
}

// Validate checks the fields a caller may set.
func (it *Item) Validate() error {
	var errs []error
	if strings.TrimSpace(it.Name) == "" {
		errs = append(errs, errors.New("name required"))
	}
	if !(it.Quantity > 0) {
		errs = append(errs, errors.New("quantity must be positive"))
	}
	if !it.Unit.Valid() {
		errs = append(errs, fmt.Errorf("invalid unit %q", it.Unit))
	}
	if !it.Category.Valid() {
		errs = append(errs, fmt.Errorf("invalid category %q", it.Category))
	}
	if it.ExpiryDate.IsZero() {
		errs = append(errs, errors.New("expiry date required"))
	}
	if it.ReminderDays < 0 {
		errs = append(errs, errors.New("reminder days must not be negative"))
	}
	if it.ReminderEmail != "" && !validEmail(it.ReminderEmail) {
		errs = append(errs, fmt.Errorf("invalid reminder email %q", it.ReminderEmail))
	}
	return errors.Join(errs...)
}

// validEmail accepts a bare RFC 5322 address, not a display-name form.
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// ItemPatch is a partial update. Nil fields are left untouched. ID, owner and
// the opened state are not patchable; opening goes through its own transition.
type ItemPatch struct {
	Name          *string   `json:"name,omitempty"`
	Quantity      *float64  `json:"quantity,omitempty"`
	Unit          *Unit     `json:"unit,omitempty"`
	Category      *Category `json:"category,omitempty"`
	ExpiryDate    *Date     `json:"expiry_date,omitempty"`
	ReminderDays  *int      `json:"reminder_days,omitempty"`
	ReminderEmail *string   `json:"reminder_email,omitempty"`
	ReminderPhone *string   `json:"reminder_phone,omitempty"`
	ReminderSent  *bool     `json:"reminder_sent,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ItemPatch) Empty() bool {
	return p == ItemPatch{}
}

// Apply merges the patch into the item. The reminder flag is applied before
// the expiry date, so a patch that moves the date always leaves the flag
// cleared.
func (it *Item) Apply(p ItemPatch) {
	if p.Name != nil {
		it.Name = strings.TrimSpace(*p.Name)
	}
	if p.Quantity != nil {
		it.Quantity = *p.Quantity
	}
	if p.Unit != nil {
		it.Unit = *p.Unit
	}
	if p.Category != nil {
		it.Category = *p.Category
	}
	if p.ReminderDays != nil {
		it.ReminderDays = *p.ReminderDays
	}
	if p.ReminderEmail != nil {
		it.ReminderEmail = strings.TrimSpace(*p.ReminderEmail)
	}
	if p.ReminderPhone != nil {
		it.ReminderPhone = strings.TrimSpace(*p.ReminderPhone)
	}
	if p.ReminderSent != nil {
		it.ReminderSent = *p.ReminderSent
	}
	if p.ExpiryDate != nil {
		it.SetExpiry(*p.ExpiryDate)
	}
}
