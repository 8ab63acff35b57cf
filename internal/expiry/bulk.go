package expiry

import "github.com/erazemk/shramba/internal/model"

// bulkMinimum maps a unit to the quantity at which an item counts as bulk.
// Units missing from the table are never bulk.
var bulkMinimum = map[model.Unit]float64{
	model.UnitKilogram: 2,
	model.UnitLitre:    2,
	model.UnitPackage:  3,
}

// IsBulk reports whether quantity of unit is a bulk amount.
func IsBulk(quantity float64, unit model.Unit) bool {
	minimum, ok := bulkMinimum[unit]
	return ok && quantity >= minimum
}
