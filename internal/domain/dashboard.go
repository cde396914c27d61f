package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultRenewalWindowDays = 30
	TopByPriceLimit          = 5
	UpcomingRenewalsLimit    = 10
	UnknownDepartment        = "Unknown department"
)

// KPIs aggregates ACTIVE, non-deleted subscriptions.
type KPIs struct {
	Count   int64           `json:"count"`
	Sum     decimal.Decimal `json:"sum"`
	Average decimal.Decimal `json:"average"`
}

// DepartmentTotal is one row of the grouped spend query, before the
// department descriptions are joined in.
type DepartmentTotal struct {
	DepartmentID int64
	Total        decimal.Decimal
}

type DepartmentSpend struct {
	DepartmentID int64  `json:"department_id"`
	Description  string `json:"description"`
	Total        string `json:"total"`
}

type TopSubscription struct {
	ID             uuid.UUID `json:"id"`
	Service        string    `json:"service"`
	ServiceWebsite *string   `json:"service_website"`
	Plan           string    `json:"plan"`
	Price          string    `json:"price"`
}

type UpcomingRenewal struct {
	ID             uuid.UUID `json:"id"`
	Service        string    `json:"service"`
	ServiceWebsite *string   `json:"service_website"`
	Price          string    `json:"price"`
	DueDate        time.Time `json:"due_date"`
	DaysRemaining  int       `json:"days_remaining"`
}

type DashboardCards struct {
	MonthlyTotal      string `json:"monthly_total"`
	SubscriptionCount int64  `json:"subscription_count"`
	AverageTicket     string `json:"average_ticket"`
}

func (k KPIs) Cards() DashboardCards {
	return DashboardCards{
		MonthlyTotal:      k.Sum.StringFixed(2),
		SubscriptionCount: k.Count,
		AverageTicket:     k.Average.StringFixed(2),
	}
}

type DashboardCharts struct {
	ByDepartment []DepartmentSpend `json:"by_department"`
}

type DashboardLists struct {
	MostExpensive []TopSubscription `json:"most_expensive"`
	Upcoming      []UpcomingRenewal `json:"upcoming"`
}

// DashboardSnapshot keeps Cards nil when KPIs could not be computed so
// clients can tell "unavailable" from zero.
type DashboardSnapshot struct {
	Cards  *DashboardCards `json:"cards"`
	Charts DashboardCharts `json:"charts"`
	Lists  DashboardLists  `json:"lists"`
}
