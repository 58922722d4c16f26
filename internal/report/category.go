package report

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/paycom-distribution/internal/types"
	"github.com/ginjaninja78/paycom-distribution/internal/validation"
)

// Category is one of the four distribution reports.
type Category struct {
	// Slug names the report in file names and summaries.
	Slug string

	// Title is the human readable name.
	Title string

	// Column is the payroll column the category value is taken from.
	Column string

	value func(types.PayrollRecord) string
}

// Value returns the raw category value of rec.
func (c Category) Value(rec types.PayrollRecord) string {
	return c.value(rec)
}

// Categories lists the reports in output order.
var Categories = []Category{
	{
		Slug:   "salary",
		Title:  "Salary",
		Column: validation.ColSalary,
		value:  func(r types.PayrollRecord) string { return r.Salary },
	},
	{
		Slug:   "fica",
		Title:  "FICA",
		Column: validation.ColFICA,
		value:  func(r types.PayrollRecord) string { return r.FICA },
	},
	{
		Slug:   "ny_metro_ctm",
		Title:  "NY-Metro-CTM",
		Column: validation.ColNYMetroCTM,
		value:  func(r types.PayrollRecord) string { return r.NYMetroCTM },
	},
	{
		Slug:   "401k_match",
		Title:  "401K-Match",
		Column: validation.Col401KMatch,
		value:  func(r types.PayrollRecord) string { return r.Match401K },
	},
}

// ParseAmount reads a payroll amount such as "1,234.50", "$12" or "(3.00)".
// ok is false when raw is not a number.
func ParseAmount(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if s == "" {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// applies reports whether raw earns a row in a category report: it must be
// non-blank and must not be a numeric zero.
func applies(raw string) bool {
	if strings.TrimSpace(raw) == "" {
		return false
	}
	d, ok := ParseAmount(raw)
	return !ok || !d.IsZero()
}
