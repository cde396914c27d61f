package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SubscriptionStatus string

const (
	StatusActive         SubscriptionStatus = "ACTIVE"
	StatusExpired        SubscriptionStatus = "EXPIRED"
	StatusRenewalPending SubscriptionStatus = "RENEWAL_PENDING"
	StatusCancelled      SubscriptionStatus = "CANCELLED"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case StatusActive, StatusExpired, StatusRenewalPending, StatusCancelled:
		return true
	}
	return false
}

type Currency string

const (
	CurrencyBRL Currency = "BRL"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

func (c Currency) Valid() bool {
	switch c {
	case CurrencyBRL, CurrencyUSD, CurrencyEUR:
		return true
	}
	return false
}

// Subscription mirrors a row of the subscriptions table.
type Subscription struct {
	ID            uuid.UUID          `json:"id" db:"id"`
	ServiceID     uuid.UUID          `json:"service_id" db:"service_id"`
	ResponsibleID uuid.UUID          `json:"responsible_id" db:"responsible_id"`
	DepartmentID  int64              `json:"department_id" db:"department_id"`
	Plan          string             `json:"plan" db:"plan"`
	Price         decimal.Decimal    `json:"price" db:"price"`
	Currency      Currency           `json:"currency" db:"currency"`
	StartDate     time.Time          `json:"start_date" db:"start_date"`
	EndDate       *time.Time         `json:"end_date" db:"end_date"`
	NextBilling   time.Time          `json:"next_billing" db:"next_billing"`
	Status        SubscriptionStatus `json:"status" db:"status"`
	Version       int                `json:"version" db:"version"`
	DeletedAt     *time.Time         `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt     time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" db:"updated_at"`
}

// SubscriptionRecord is a subscription joined with the display fields of
// the entities it references.
type SubscriptionRecord struct {
	Subscription
	ServiceName           string
	ServiceWebsite        *string
	DepartmentDescription string
	ResponsibleName       string
	ResponsibleEmail      string
}

// SubscriptionView is the response projection. Price is rendered as an
// exact decimal string.
type SubscriptionView struct {
	ID                    uuid.UUID          `json:"id"`
	ServiceID             uuid.UUID          `json:"service_id"`
	ResponsibleID         uuid.UUID          `json:"responsible_id"`
	DepartmentID          int64              `json:"department_id"`
	Plan                  string             `json:"plan"`
	Price                 string             `json:"price"`
	Currency              Currency           `json:"currency"`
	StartDate             time.Time          `json:"start_date"`
	EndDate               *time.Time         `json:"end_date"`
	NextBilling           time.Time          `json:"next_billing"`
	Status                SubscriptionStatus `json:"status"`
	Version               int                `json:"version"`
	ServiceName           string             `json:"service_name"`
	DepartmentDescription string             `json:"department_description"`
	ResponsibleName       string             `json:"responsible_name"`
	ResponsibleEmail      string             `json:"responsible_email"`
}

type SubscriptionDetailView struct {
	SubscriptionView
	ServiceWebsite *string   `json:"service_website"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (r SubscriptionRecord) View() SubscriptionView {
	return SubscriptionView{
		ID:                    r.ID,
		ServiceID:             r.ServiceID,
		ResponsibleID:         r.ResponsibleID,
		DepartmentID:          r.DepartmentID,
		Plan:                  r.Plan,
		Price:                 r.Price.String(),
		Currency:              r.Currency,
		StartDate:             r.StartDate,
		EndDate:               r.EndDate,
		NextBilling:           r.NextBilling,
		Status:                r.Status,
		Version:               r.Version,
		ServiceName:           r.ServiceName,
		DepartmentDescription: r.DepartmentDescription,
		ResponsibleName:       r.ResponsibleName,
		ResponsibleEmail:      r.ResponsibleEmail,
	}
}

func (r SubscriptionRecord) DetailView() SubscriptionDetailView {
	return SubscriptionDetailView{
		SubscriptionView: r.View(),
		ServiceWebsite:   r.ServiceWebsite,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

type SubscriptionFilter struct {
	Status        *SubscriptionStatus
	ServiceID     *uuid.UUID
	ResponsibleID *uuid.UUID
	DepartmentID  *int64
	Search        string
	Page          int
	Limit         int
}

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Normalize clamps paging to sane bounds.
func (f *SubscriptionFilter) Normalize() {
	f.Page, f.Limit = normalizePaging(f.Page, f.Limit)
	f.Search = strings.TrimSpace(f.Search)
}

func (f SubscriptionFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// CreateSubscriptionInput is the already decoded body of a create request.
type CreateSubscriptionInput struct {
	ServiceID     uuid.UUID          `json:"service_id"`
	ResponsibleID uuid.UUID          `json:"responsible_id"`
	DepartmentID  int64              `json:"department_id"`
	Plan          string             `json:"plan"`
	Price         decimal.Decimal    `json:"price"`
	Currency      Currency           `json:"currency"`
	StartDate     Date               `json:"start_date"`
	EndDate       *Date              `json:"end_date"`
	NextBilling   Date               `json:"next_billing"`
	Status        SubscriptionStatus `json:"status"`
}

func (in CreateSubscriptionInput) Validate() error {
	switch {
	case in.ServiceID == uuid.Nil:
		return Validation("service_id is required")
	case in.ResponsibleID == uuid.Nil:
		return Validation("responsible_id is required")
	case in.DepartmentID <= 0:
		return Validation("department_id must be a positive integer")
	case len(strings.TrimSpace(in.Plan)) < 2:
		return Validation("plan must have at least 2 characters")
	case !in.Price.IsPositive():
		return Validation("price must be positive")
	case !in.Currency.Valid():
		return Validation("invalid currency")
	case in.StartDate.IsZero():
		return Validation("start_date is required")
	case in.NextBilling.IsZero():
		return Validation("next_billing is required")
	case in.Status != "" && !in.Status.Valid():
		return Validation("invalid subscription status")
	}
	if in.EndDate != nil && !in.EndDate.IsZero() &&
		EndOfDayUTC(in.EndDate.Time).Before(StartOfDayUTC(in.StartDate.Time)) {
		return Validation("end_date cannot be before start_date")
	}
	return nil
}

// UpdateSubscriptionInput is a sparse patch. Absent fields stay unchanged;
// EndDate additionally distinguishes an explicit null, which clears it.
type UpdateSubscriptionInput struct {
	Plan         Field[string]             `json:"plan"`
	Price        Field[decimal.Decimal]    `json:"price"`
	DepartmentID Field[int64]              `json:"department_id"`
	StartDate    Field[Date]               `json:"start_date"`
	EndDate      Field[Date]               `json:"end_date"`
	NextBilling  Field[Date]               `json:"next_billing"`
	Status       Field[SubscriptionStatus] `json:"status"`
	Version      int                       `json:"version"`
}

func (in UpdateSubscriptionInput) Validate() error {
	if in.Version <= 0 {
		return Validation("version is required and must be positive")
	}
	nullable := []struct {
		name string
		null bool
	}{
		{"plan", in.Plan.IsNull()},
		{"price", in.Price.IsNull()},
		{"department_id", in.DepartmentID.IsNull()},
		{"start_date", in.StartDate.IsNull()},
		{"next_billing", in.NextBilling.IsNull()},
		{"status", in.Status.IsNull()},
	}
	for _, f := range nullable {
		if f.null {
			return Validation(f.name + " cannot be null")
		}
	}
	if plan, ok := in.Plan.Get(); ok && len(strings.TrimSpace(plan)) < 2 {
		return Validation("plan must have at least 2 characters")
	}
	if price, ok := in.Price.Get(); ok && !price.IsPositive() {
		return Validation("price must be positive")
	}
	if dep, ok := in.DepartmentID.Get(); ok && dep <= 0 {
		return Validation("department_id must be a positive integer")
	}
	if status, ok := in.Status.Get(); ok && !status.Valid() {
		return Validation("invalid subscription status")
	}
	return nil
}

// SubscriptionPatch holds normalized column values for a versioned update.
// Nil pointers are left untouched; ClearEndDate sets end_date to NULL.
type SubscriptionPatch struct {
	Plan         *string
	Price        *decimal.Decimal
	DepartmentID *int64
	StartDate    *time.Time
	EndDate      *time.Time
	ClearEndDate bool
	NextBilling  *time.Time
	Status       *SubscriptionStatus
}

type SweepResult struct {
	ExpiredCount int `json:"expired_count"`
	PendingCount int `json:"pending_count"`
}
