package features

import (
	"math"
	"strconv"
)

// Value is a feature value for one cell. A Value that is not Valid is NoData:
// the variable is undefined for the cell, which is distinct from zero.
type Value struct {
	Num   float64
	Valid bool
}

// NoData is the undefined value.
var NoData = Value{}

// Num returns a defined value. Non-finite inputs collapse to NoData so that no
// Inf or NaN ever reaches a table.
func Num(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NoData
	}
	return Value{Num: v, Valid: true}
}

// Ratio returns num/den, or NoData when den is zero.
func Ratio(num, den float64) Value {
	if den == 0 {
		return NoData
	}
	return Num(num / den)
}

// Format renders v with nodata standing in for NoData.
func (v Value) Format(nodata string) string {
	if !v.Valid {
		return nodata
	}
	return strconv.FormatFloat(v.Num, 'g', -1, 64)
}

func (v Value) String() string {
	return v.Format("NA")
}
