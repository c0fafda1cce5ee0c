package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Plan is the closed set of plan tags.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanPro     Plan = "pro"
	PlanProPlus Plan = "pro_plus"
)

// Currency used for every checkout.
const Currency = "BRL"

// PlanOffer describes a plan that can be sold.
type PlanOffer struct {
	Plan      Plan
	Price     decimal.Decimal
	Available bool
}

// Title is the line item shown on the provider's checkout page.
func (o PlanOffer) Title() string {
	return "Assinatura Guied – " + strings.ToUpper(string(o.Plan))
}

var catalog = map[Plan]PlanOffer{
	PlanPro:     {Plan: PlanPro, Price: decimal.RequireFromString("9.90"), Available: true},
	PlanProPlus: {Plan: PlanProPlus, Price: decimal.RequireFromString("19.90"), Available: false},
}

// LookupOffer resolves a requested plan tag into a sellable offer.
// Recognized-but-unavailable and unknown tags produce different error codes.
func LookupOffer(raw string) (PlanOffer, error) {
	offer, ok := catalog[Plan(raw)]
	if !ok {
		return PlanOffer{}, NewValidationError(CodeUnsupportedPlan, "plan", fmt.Sprintf("plan %q is not supported", raw))
	}
	if !offer.Available {
		return PlanOffer{}, NewValidationError(CodePlanUnavailable, "plan", fmt.Sprintf("plan %q is not available yet", raw))
	}
	return offer, nil
}

// Valid reports whether p is a known paid plan tag (available or not).
func (p Plan) Valid() bool {
	_, ok := catalog[p]
	return ok
}

// Scan implements sql.Scanner so sqlx can map the plan column.
func (p *Plan) Scan(src any) error {
	switch v := src.(type) {
	case string:
		*p = Plan(v)
	case []byte:
		*p = Plan(v)
	default:
		return fmt.Errorf("domain: cannot scan %T into Plan", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (p Plan) Value() (driver.Value, error) {
	return string(p), nil
}
