package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mmoldabe-dev/subtrack/internal/domain"
	"github.com/mmoldabe-dev/subtrack/internal/repository"
)

type DashboardServiceInterface interface {
	KPIs(ctx context.Context) (domain.KPIs, error)
	SpendByDepartment(ctx context.Context) ([]domain.DepartmentSpend, error)
	TopByPrice(ctx context.Context) ([]domain.TopSubscription, error)
	UpcomingRenewals(ctx context.Context, windowDays int) ([]domain.UpcomingRenewal, error)
	Snapshot(ctx context.Context) (domain.DashboardSnapshot, error)
}

type DashboardService struct {
	spend       repository.SpendInterface
	departments repository.DepartmentInterface
	windowDays  int
	now         func() time.Time
	log         *slog.Logger
}

var _ DashboardServiceInterface = (*DashboardService)(nil)

func NewDashboardService(repos Repositories, windowDays int, log *slog.Logger) *DashboardService {
	if windowDays <= 0 {
		windowDays = domain.DefaultRenewalWindowDays
	}
	return &DashboardService{
		spend:       repos.Spend,
		departments: repos.Departments,
		windowDays:  windowDays,
		now:         time.Now,
		log:         log.With(slog.String("component", "service/dashboard")),
	}
}

func (s *DashboardService) KPIs(ctx context.Context) (domain.KPIs, error) {
	const op = "service.Dashboard.KPIs"
	k, err := s.spend.KPIs(ctx)
	if err != nil {
		return domain.KPIs{}, internalError(s.log, op, err)
	}
	return k, nil
}

// SpendByDepartment groups first and then resolves all descriptions with
// a single lookup.
func (s *DashboardService) SpendByDepartment(ctx context.Context) ([]domain.DepartmentSpend, error) {
	const op = "service.Dashboard.SpendByDepartment"

	totals, err := s.spend.SumByDepartment(ctx)
	if err != nil {
		return nil, internalError(s.log, op, err)
	}

	ids := make([]int64, 0, len(totals))
	for _, t := range totals {
		ids = append(ids, t.DepartmentID)
	}
	names, err := s.departments.DescriptionsByIDs(ctx, ids)
	if err != nil {
		return nil, internalError(s.log, op, err)
	}

	out := make([]domain.DepartmentSpend, 0, len(totals))
	for _, t := range totals {
		desc, ok := names[t.DepartmentID]
		if !ok {
			desc = domain.UnknownDepartment
		}
		out = append(out, domain.DepartmentSpend{
			DepartmentID: t.DepartmentID,
			Description:  desc,
			Total:        t.Total.StringFixed(2),
		})
	}
	return out, nil
}

func (s *DashboardService) TopByPrice(ctx context.Context) ([]domain.TopSubscription, error) {
	const op = "service.Dashboard.TopByPrice"
	top, err := s.spend.TopByPrice(ctx, domain.TopByPriceLimit)
	if err != nil {
		return nil, internalError(s.log, op, err)
	}
	if top == nil {
		top = []domain.TopSubscription{}
	}
	return top, nil
}

// UpcomingRenewals lists billings due from today through the end of the
// day windowDays ahead. A non-positive window uses the configured default.
func (s *DashboardService) UpcomingRenewals(ctx context.Context, windowDays int) ([]domain.UpcomingRenewal, error) {
	const op = "service.Dashboard.UpcomingRenewals"
	if windowDays <= 0 {
		windowDays = s.windowDays
	}

	today := domain.Today(s.now())
	until := domain.EndOfDayUTC(today.AddDate(0, 0, windowDays))

	items, err := s.spend.DueBetween(ctx, today, until, domain.UpcomingRenewalsLimit)
	if err != nil {
		return nil, internalError(s.log, op, err)
	}
	for i := range items {
		items[i].DaysRemaining = domain.DaysUntil(items[i].DueDate, today)
	}
	if items == nil {
		items = []domain.UpcomingRenewal{}
	}
	return items, nil
}

// Snapshot runs the four dashboard queries concurrently. A failed KPI
// query leaves Cards nil; failed lists come back empty.
func (s *DashboardService) Snapshot(ctx context.Context) (domain.DashboardSnapshot, error) {
	const op = "service.Dashboard.Snapshot"

	snap := domain.DashboardSnapshot{
		Charts: domain.DashboardCharts{ByDepartment: []domain.DepartmentSpend{}},
		Lists: domain.DashboardLists{
			MostExpensive: []domain.TopSubscription{},
			Upcoming:      []domain.UpcomingRenewal{},
		},
	}

	var wg sync.WaitGroup
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	run(func() {
		k, err := s.KPIs(ctx)
		if err != nil {
			s.log.Warn("dashboard cards unavailable", slog.String("op", op))
			return
		}
		cards := k.Cards()
		snap.Cards = &cards
	})
	run(func() {
		if spend, err := s.SpendByDepartment(ctx); err == nil {
			snap.Charts.ByDepartment = spend
		}
	})
	run(func() {
		if top, err := s.TopByPrice(ctx); err == nil {
			snap.Lists.MostExpensive = top
		}
	})
	run(func() {
		if upcoming, err := s.UpcomingRenewals(ctx, s.windowDays); err == nil {
			snap.Lists.Upcoming = upcoming
		}
	})
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return domain.DashboardSnapshot{}, internalError(s.log, op, err)
	}
	return snap, nil
}
