package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmoldabe-dev/subtrack/internal/domain"
	"github.com/mmoldabe-dev/subtrack/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// store is an in-memory stand-in for the database shared by the fakes.
type store struct {
	mu          sync.Mutex
	subs        map[uuid.UUID]domain.Subscription
	services    map[uuid.UUID]domain.Service
	departments map[int64]domain.Department
	users       map[uuid.UUID]domain.User
	clock       time.Time
}

func newStore() *store {
	return &store{
		subs:        map[uuid.UUID]domain.Subscription{},
		services:    map[uuid.UUID]domain.Service{},
		departments: map[int64]domain.Department{},
		users:       map[uuid.UUID]domain.User{},
		clock:       time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *store) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *store) addDepartment(id int64, desc string) {
	s.departments[id] = domain.Department{ID: id, Description: desc}
}

func (s *store) addService(name string) uuid.UUID {
	id := uuid.New()
	s.services[id] = domain.Service{ID: id, Name: name}
	return id
}

func (s *store) addUser(name string) uuid.UUID {
	id := uuid.New()
	s.users[id] = domain.User{ID: id, Name: name, Email: strings.ToLower(name) + "@example.com", Role: domain.RoleManager, Active: true}
	return id
}

func (s *store) sub(id uuid.UUID) domain.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[id]
}

type fakeSubs struct {
	st *store
}

func (f *fakeSubs) Create(_ context.Context, sub *domain.Subscription) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	for _, other := range f.st.subs {
		if other.DeletedAt == nil && other.ServiceID == sub.ServiceID && other.DepartmentID == sub.DepartmentID &&
			strings.EqualFold(other.Plan, sub.Plan) {
			return repository.ErrConflict
		}
	}
	now := f.st.tick()
	sub.Version, sub.CreatedAt, sub.UpdatedAt = 1, now, now
	f.st.subs[sub.ID] = *sub
	return nil
}

func (f *fakeSubs) record(sub domain.Subscription) domain.SubscriptionRecord {
	svc := f.st.services[sub.ServiceID]
	user := f.st.users[sub.ResponsibleID]
	return domain.SubscriptionRecord{
		Subscription:          sub,
		ServiceName:           svc.Name,
		ServiceWebsite:        svc.Website,
		DepartmentDescription: f.st.departments[sub.DepartmentID].Description,
		ResponsibleName:       user.Name,
		ResponsibleEmail:      user.Email,
	}
}

func (f *fakeSubs) GetByID(_ context.Context, id uuid.UUID) (*domain.SubscriptionRecord, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	sub, ok := f.st.subs[id]
	if !ok || sub.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	rec := f.record(sub)
	return &rec, nil
}

func (f *fakeSubs) List(_ context.Context, filter domain.SubscriptionFilter) ([]domain.SubscriptionRecord, int, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()

	var matched []domain.Subscription
	for _, sub := range f.st.subs {
		switch {
		case sub.DeletedAt != nil,
			filter.Status != nil && sub.Status != *filter.Status,
			filter.DepartmentID != nil && sub.DepartmentID != *filter.DepartmentID,
			filter.Search != "" && !strings.Contains(strings.ToLower(sub.Plan), strings.ToLower(filter.Search)):
			continue
		}
		matched = append(matched, sub)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() > matched[j].ID.String()
	})

	total := len(matched)
	start := min(filter.Offset(), total)
	end := min(start+filter.Limit, total)
	var recs []domain.SubscriptionRecord
	for _, sub := range matched[start:end] {
		recs = append(recs, f.record(sub))
	}
	return recs, total, nil
}

func (f *fakeSubs) UpdateVersioned(_ context.Context, id uuid.UUID, version int, patch domain.SubscriptionPatch) (bool, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	sub, ok := f.st.subs[id]
	if !ok || sub.DeletedAt != nil || sub.Version != version {
		return false, nil
	}
	if patch.Plan != nil {
		sub.Plan = *patch.Plan
	}
	if patch.Price != nil {
		sub.Price = *patch.Price
	}
	if patch.DepartmentID != nil {
		sub.DepartmentID = *patch.DepartmentID
	}
	if patch.StartDate != nil {
		sub.StartDate = *patch.StartDate
	}
	if patch.ClearEndDate {
		sub.EndDate = nil
	} else if patch.EndDate != nil {
		sub.EndDate = patch.EndDate
	}
	if patch.NextBilling != nil {
		sub.NextBilling = *patch.NextBilling
	}
	if patch.Status != nil {
		sub.Status = *patch.Status
	}
	sub.Version++
	sub.UpdatedAt = f.st.tick()
	f.st.subs[id] = sub
	return true, nil
}

func (f *fakeSubs) SoftDelete(_ context.Context, id uuid.UUID) (bool, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	sub, ok := f.st.subs[id]
	if !ok || sub.DeletedAt != nil {
		return false, nil
	}
	now := f.st.tick()
	sub.DeletedAt = &now
	f.st.subs[id] = sub
	return true, nil
}

func (f *fakeSubs) transition(to domain.SubscriptionStatus, match func(domain.Subscription) bool) []uuid.UUID {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	var ids []uuid.UUID
	for id, sub := range f.st.subs {
		if sub.DeletedAt != nil || sub.Status != domain.StatusActive || !match(sub) {
			continue
		}
		sub.Status = to
		sub.Version++
		f.st.subs[id] = sub
		ids = append(ids, id)
	}
	return ids
}

func (f *fakeSubs) ExpireDue(_ context.Context, _ repository.DBTX, today time.Time) ([]uuid.UUID, error) {
	return f.transition(domain.StatusExpired, func(s domain.Subscription) bool {
		return s.EndDate != nil && !s.EndDate.After(today)
	}), nil
}

func (f *fakeSubs) MarkRenewalPending(_ context.Context, _ repository.DBTX, today time.Time) ([]uuid.UUID, error) {
	return f.transition(domain.StatusRenewalPending, func(s domain.Subscription) bool {
		return !s.NextBilling.After(today) && (s.EndDate == nil || s.EndDate.After(today))
	}), nil
}

func (f *fakeSubs) countActive(match func(domain.Subscription) bool) int {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	n := 0
	for _, sub := range f.st.subs {
		if sub.DeletedAt == nil && sub.Status == domain.StatusActive && match(sub) {
			n++
		}
	}
	return n
}

func (f *fakeSubs) CountActiveByDepartment(_ context.Context, id int64) (int, error) {
	return f.countActive(func(s domain.Subscription) bool { return s.DepartmentID == id }), nil
}

func (f *fakeSubs) CountActiveByService(_ context.Context, id uuid.UUID) (int, error) {
	return f.countActive(func(s domain.Subscription) bool { return s.ServiceID == id }), nil
}

type fakeServices struct {
	st *store
}

func (f *fakeServices) Create(_ context.Context, svc *domain.Service) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	for _, other := range f.st.services {
		if other.DeletedAt == nil && strings.EqualFold(other.Name, svc.Name) {
			return repository.ErrConflict
		}
	}
	f.st.services[svc.ID] = *svc
	return nil
}

func (f *fakeServices) GetByID(_ context.Context, id uuid.UUID) (*domain.Service, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	svc, ok := f.st.services[id]
	if !ok || svc.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	return &svc, nil
}

func (f *fakeServices) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := f.GetByID(ctx, id)
	return err == nil, nil
}

func (f *fakeServices) List(context.Context) ([]domain.Service, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	var out []domain.Service
	for _, svc := range f.st.services {
		if svc.DeletedAt == nil {
			out = append(out, svc)
		}
	}
	return out, nil
}

func (f *fakeServices) Update(_ context.Context, svc *domain.Service) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	cur, ok := f.st.services[svc.ID]
	if !ok || cur.DeletedAt != nil {
		return repository.ErrNotFound
	}
	cur.Name, cur.Website = svc.Name, svc.Website
	f.st.services[svc.ID] = cur
	return nil
}

func (f *fakeServices) SoftDelete(_ context.Context, id uuid.UUID) (bool, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	svc, ok := f.st.services[id]
	if !ok || svc.DeletedAt != nil {
		return false, nil
	}
	now := f.st.tick()
	svc.DeletedAt = &now
	f.st.services[id] = svc
	return true, nil
}

type fakeDepartments struct {
	st     *store
	nextID int64
}

func (f *fakeDepartments) Create(_ context.Context, desc string) (*domain.Department, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	for _, d := range f.st.departments {
		if d.DeletedAt == nil && strings.EqualFold(d.Description, desc) {
			return nil, repository.ErrConflict
		}
	}
	f.nextID++
	d := domain.Department{ID: f.nextID, Description: desc}
	f.st.departments[d.ID] = d
	return &d, nil
}

func (f *fakeDepartments) GetByID(_ context.Context, id int64) (*domain.Department, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	d, ok := f.st.departments[id]
	if !ok || d.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}

func (f *fakeDepartments) Exists(ctx context.Context, id int64) (bool, error) {
	_, err := f.GetByID(ctx, id)
	return err == nil, nil
}

func (f *fakeDepartments) List(context.Context) ([]domain.Department, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	var out []domain.Department
	for _, d := range f.st.departments {
		if d.DeletedAt == nil {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDepartments) Update(_ context.Context, id int64, desc string) (*domain.Department, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	d, ok := f.st.departments[id]
	if !ok || d.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	d.Description = desc
	f.st.departments[id] = d
	return &d, nil
}

func (f *fakeDepartments) SoftDelete(_ context.Context, id int64) (bool, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	d, ok := f.st.departments[id]
	if !ok || d.DeletedAt != nil {
		return false, nil
	}
	now := f.st.tick()
	d.DeletedAt = &now
	f.st.departments[id] = d
	return true, nil
}

func (f *fakeDepartments) DescriptionsByIDs(_ context.Context, ids []int64) (map[int64]string, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	out := map[int64]string{}
	for _, id := range ids {
		if d, ok := f.st.departments[id]; ok {
			out[id] = d.Description
		}
	}
	return out, nil
}

type fakeUsers struct {
	st *store
}

func (f *fakeUsers) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	u, ok := f.st.users[id]
	return ok && u.DeletedAt == nil, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	u, ok := f.st.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (f *fakeUsers) Ensure(_ context.Context, u *domain.User) (bool, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	if _, ok := f.st.users[u.ID]; ok {
		return false, nil
	}
	f.st.users[u.ID] = *u
	return true, nil
}

func (f *fakeUsers) Create(_ context.Context, u *domain.User) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	for _, existing := range f.st.users {
		if existing.Email == u.Email {
			return repository.ErrConflict
		}
	}
	u.CreatedAt = f.st.clock
	f.st.users[u.ID] = *u
	return nil
}

// fakeTx restores the subscription table when fn fails, like a rollback.
type fakeTx struct {
	st *store
}

func (f *fakeTx) RunInTx(_ context.Context, fn func(tx repository.DBTX) error) error {
	f.st.mu.Lock()
	saved := maps.Clone(f.st.subs)
	f.st.mu.Unlock()

	if err := fn(nil); err != nil {
		f.st.mu.Lock()
		f.st.subs = saved
		f.st.mu.Unlock()
		return err
	}
	return nil
}

// fakeSink records entries synchronously.
type fakeSink struct {
	mu       sync.Mutex
	appended []domain.AuditEntry
	batched  []domain.AuditEntry
	batchErr error
}

func (f *fakeSink) Append(_ context.Context, entry domain.AuditEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, entry)
}

func (f *fakeSink) AppendMany(_ context.Context, _ repository.DBTX, entries []domain.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.batchErr != nil {
		return f.batchErr
	}
	f.batched = append(f.batched, entries...)
	return nil
}

func (f *fakeSink) last() domain.AuditEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appended[len(f.appended)-1]
}

type fakeSpend struct {
	kpis     domain.KPIs
	kpiErr   error
	totals   []domain.DepartmentTotal
	totalErr error
	top      []domain.TopSubscription
	due      []domain.UpcomingRenewal
	dueErr   error

	gotFrom, gotTo time.Time
	gotLimit       int
}

func (f *fakeSpend) KPIs(context.Context) (domain.KPIs, error) { return f.kpis, f.kpiErr }

func (f *fakeSpend) SumByDepartment(context.Context) ([]domain.DepartmentTotal, error) {
	return f.totals, f.totalErr
}

func (f *fakeSpend) TopByPrice(_ context.Context, limit int) ([]domain.TopSubscription, error) {
	f.gotLimit = limit
	return f.top, nil
}

func (f *fakeSpend) DueBetween(_ context.Context, from, to time.Time, _ int) ([]domain.UpcomingRenewal, error) {
	f.gotFrom, f.gotTo = from, to
	return f.due, f.dueErr
}

type fakeAuditRepo struct {
	entries []domain.AuditEntry
	total   int
	err     error
	got     domain.AuditFilter
}

func (f *fakeAuditRepo) Insert(context.Context, repository.DBTX, domain.AuditEntry) error { return nil }

func (f *fakeAuditRepo) InsertMany(context.Context, repository.DBTX, []domain.AuditEntry) error {
	return nil
}

func (f *fakeAuditRepo) List(_ context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, int, error) {
	f.got = filter
	return f.entries, f.total, f.err
}

type fixture struct {
	st    *store
	repos Repositories
	sink  *fakeSink
	spend *fakeSpend
	subs  *SubscriptionService
}

func newFixture() *fixture {
	st := newStore()
	spend := &fakeSpend{}
	repos := Repositories{
		Subscriptions: &fakeSubs{st: st},
		Services:      &fakeServices{st: st},
		Departments:   &fakeDepartments{st: st, nextID: 100},
		Users:         &fakeUsers{st: st},
		Spend:         spend,
		Audit:         &fakeAuditRepo{},
		Tx:            &fakeTx{st: st},
	}
	sink := &fakeSink{}
	system := st.addUser("System")
	svc, err := NewSubscriptionService(repos, sink, system, discardLogger())
	if err != nil {
		panic(err)
	}
	return &fixture{st: st, repos: repos, sink: sink, spend: spend, subs: svc}
}

func (f *fixture) at(now time.Time) {
	f.subs.now = func() time.Time { return now }
}

func jsonEqual(a, b []byte) bool {
	return bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b))
}

var errBoom = errors.New("boom")
