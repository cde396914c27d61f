package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mmoldabe-dev/subtrack/internal/domain"
	"github.com/shopspring/decimal"
)

type refs struct {
	service uuid.UUID
	user    uuid.UUID
	dep     int64
}

func (f *fixture) seedRefs() refs {
	f.st.addDepartment(1, "Marketing")
	return refs{service: f.st.addService("Slack"), user: f.st.addUser("Ana"), dep: 1}
}

func createInput(r refs, plan string) domain.CreateSubscriptionInput {
	return domain.CreateSubscriptionInput{
		ServiceID:     r.service,
		ResponsibleID: r.user,
		DepartmentID:  r.dep,
		Plan:          plan,
		Price:         decimal.RequireFromString("120.00"),
		Currency:      domain.CurrencyBRL,
		StartDate:     domain.NewDate(2025, time.January, 1),
		NextBilling:   domain.NewDate(2025, time.February, 1),
	}
}

func wantKind(t *testing.T, err error, kind domain.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := domain.KindOf(err); got != kind {
		t.Fatalf("error kind = %s, want %s (err: %v)", got, kind, err)
	}
}

func TestNewSubscriptionService_RequiresSystemUser(t *testing.T) {
	if _, err := NewSubscriptionService(Repositories{}, &fakeSink{}, uuid.Nil, discardLogger()); err == nil {
		t.Fatal("expected error for nil system user id")
	}
}

func TestSubscription_CreateUpdateStaleVersion(t *testing.T) {
	f := newFixture()
	r := f.seedRefs()
	ctx := context.Background()
	actor := r.user

	created, err := f.subs.Create(ctx, createInput(r, "Pro"), actor)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.Status != domain.StatusActive || created.Version != 1 {
		t.Fatalf("created = %+v, want ACTIVE v1", created)
	}
	if created.ServiceName != "Slack" || created.DepartmentDescription != "Marketing" ||
		created.ResponsibleName != "Ana" || created.ResponsibleEmail != "ana@example.com" {
		t.Errorf("display fields not denormalized: %+v", created)
	}

	updated, err := f.subs.Update(ctx, created.ID, domain.UpdateSubscriptionInput{
		Price:   domain.Value(decimal.RequireFromString("150.00")),
		Version: 1,
	}, actor)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Version != 2 || updated.Price != "150" {
		t.Fatalf("updated version=%d price=%q, want 2 and \"150\"", updated.Version, updated.Price)
	}

	_, err = f.subs.Update(ctx, created.ID, domain.UpdateSubscriptionInput{
		Price:   domain.Value(decimal.RequireFromString("99.00")),
		Version: 1,
	}, actor)
	wantKind(t, err, domain.KindConflict)

	stored := f.st.sub(created.ID)
	if !stored.Price.Equal(decimal.RequireFromString("150")) || stored.Version != 2 {
		t.Errorf("stale update changed the row: price=%s version=%d", stored.Price, stored.Version)
	}

	if n := len(f.sink.appended); n != 2 {
		t.Fatalf("audit entries = %d, want 2 (create + update)", n)
	}
	upd := f.sink.last()
	if upd.Action != domain.ActionUpdate || upd.UserID != actor || upd.OldValues.IsZero() || upd.NewValues.IsZero() {
		t.Errorf("update audit entry = %+v", upd)
	}
}

func TestSubscription_CreatePinsDatesToUTC(t *testing.T) {
	f := newFixture()
	r := f.seedRefs()

	start, err := domain.ParseDate("2025-09-01T22:30:00-03:00")
	if err != nil {
		t.Fatal(err)
	}
	in := createInput(r, "Business")
	in.StartDate = start
	in.NextBilling = start
	end := domain.NewDate(2025, time.September, 1)
	in.EndDate = &end

	view, err := f.subs.Create(context.Background(), in, r.user)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	wantStart := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2025, 9, 1, 23, 59, 59, int(999*time.Millisecond), time.UTC)
	if !view.StartDate.Equal(wantStart) || !view.NextBilling.Equal(wantStart) {
		t.Errorf("start=%v next=%v, want %v", view.StartDate, view.NextBilling, wantStart)
	}
	if view.EndDate == nil || !view.EndDate.Equal(wantEnd) {
		t.Errorf("end=%v, want %v", view.EndDate, wantEnd)
	}
}

func TestSubscription_CreateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.CreateSubscriptionInput)
		want   domain.Kind
	}{
		{"missing service", func(in *domain.CreateSubscriptionInput) { in.ServiceID = uuid.New() }, domain.KindNotFound},
		{"missing user", func(in *domain.CreateSubscriptionInput) { in.ResponsibleID = uuid.New() }, domain.KindNotFound},
		{"missing department", func(in *domain.CreateSubscriptionInput) { in.DepartmentID = 42 }, domain.KindNotFound},
		{"non-positive price", func(in *domain.CreateSubscriptionInput) { in.Price = decimal.Zero }, domain.KindValidation},
		{"end before start", func(in *domain.CreateSubscriptionInput) {
			end := domain.NewDate(2024, time.December, 31)
			in.EndDate = &end
		}, domain.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			r := f.seedRefs()
			in := createInput(r, "Pro")
			tt.mutate(&in)

			_, err := f.subs.Create(context.Background(), in, r.user)
			wantKind(t, err, tt.want)
			if len(f.st.subs) != 0 || len(f.sink.appended) != 0 {
				t.Error("failed create must not persist or audit")
			}
		})
	}
}

func TestSubscription_CreateDuplicateIsConflict(t *testing.T) {
	f := newFixture()
	r := f.seedRefs()
	ctx := context.Background()

	if _, err := f.subs.Create(ctx, createInput(r, "Pro"), r.user); err != nil {
		t.Fatal(err)
	}
	_, err := f.subs.Create(ctx, createInput(r, "pro"), r.user)
	wantKind(t, err, domain.KindConflict)
}

func TestSubscription_UpdateUsesEffectiveDates(t *testing.T) {
	f := newFixture()
	r := f.seedRefs()
	ctx := context.Background()

	in := createInput(r, "Pro")
	in.StartDate = domain.NewDate(2025, time.March, 1)
	created, err := f.subs.Create(ctx, in, r.user)
	if err != nil {
		t.Fatal(err)
	}

	// only end_date supplied; the stored start must still be honored
	_, err = f.subs.Update(ctx, created.ID, domain.UpdateSubscriptionInput{
		EndDate: domain.Value(domain.NewDate(2025, time.February, 1)),
		Version: 1,
	}, r.user)
	wantKind(t, err, domain.KindBusinessRule)
	if f.st.sub(created.ID).Version != 1 {
		t.Error("rejected update must not write")
	}

	// same calendar day as start is fine
	got, err := f.subs.Update(ctx, created.ID, domain.UpdateSubscriptionInput{
		EndDate: domain.Value(domain.NewDate(2025, time.March, 1)),
		Version: 1,
	}, r.user)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.EndDate == nil || got.EndDate.Hour() != 23 {
		t.Errorf("end date = %v, want pinned to day end", got.EndDate)
	}

	// moving start past the stored end is rejected too
	_, err = f.subs.Update(ctx, created.ID, domain.UpdateSubscriptionInput{
		StartDate: domain.Value(domain.NewDate(2025, time.March, 2)),
		Version:   2,
	}, r.user)
	wantKind(t, err, domain.KindBusinessRule)
}

func TestSubscription_UpdateEndDateNullVersusAbsent(t *testing.T) {
	f := newFixture()
	r := f.seedRefs()
	ctx := context.Background()

	in := createInput(r, "Pro")
	end := domain.NewDate(2025, time.December, 31)
	in.EndDate = &end
	created, err := f.subs.Create(ctx, in, r.user)
	if err != nil {
		t.Fatal(err)
	}

	var absent domain.UpdateSubscriptionInput
	if err := json.Unmarshal([]byte(`{"plan":"Pro Plus","version":1}`), &absent); err != nil {
		t.Fatal(err)
	}
	got, err := f.subs.Update(ctx, created.ID, absent, r.user)
	if err != nil {
		t.Fatal(err)
	}
	if got.EndDate == nil {
		t.Fatal("omitted end_date must stay unchanged")
	}
	if got.Status != domain.StatusActive {
		t.Errorf("omitted status changed to %s", got.Status)
	}

	var cleared domain.UpdateSubscriptionInput
	if err := json.Unmarshal([]byte(`{"end_date":null,"version":2}`), &cleared); err != nil {
		t.Fatal(err)
	}
	got, err = f.subs.Update(ctx, created.ID, cleared, r.user)
	if err != nil {
		t.Fatal(err)
	}
	if got.EndDate != nil {
		t.Errorf("explicit null end_date must clear it, got %v", got.EndDate)
	}
	if got.Version != 3 {
		t.Errorf("version = %d, want 3", got.Version)
	}
}

func TestSubscription_UpdateErrors(t *testing.T) {
	f := newFixture()
	r := f.seedRefs()
	ctx := context.Background()

	created, err := f.subs.Create(ctx, createInput(r, "Pro"), r.user)
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.subs.Update(ctx, uuid.New(), domain.UpdateSubscriptionInput{Version: 1}, r.user)
	wantKind(t, err, domain.KindNotFound)

	_, err = f.subs.Update(ctx, created.ID, domain.UpdateSubscriptionInput{}, r.user)
	wantKind(t, err, domain.KindValidation)

	_, err = f.subs.Update(ctx, created.ID, domain.UpdateSubscriptionInput{
		DepartmentID: domain.Value(int64(77)),
		Version:      1,
	}, r.user)
	wantKind(t, err, domain.KindNotFound)
}

func TestSubscription_SoftDelete(t *testing.T) {
	f := newFixture()
	r := f.seedRefs()
	ctx := context.Background()

	created, err := f.subs.Create(ctx, createInput(r, "Pro"), r.user)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.subs.SoftDelete(ctx, created.ID, r.user); err != nil {
		t.Fatalf("SoftDelete() error = %v", err)
	}

	entry := f.sink.last()
	if entry.Action != domain.ActionDelete || entry.OldValues.IsZero() || !entry.NewValues.IsZero() {
		t.Errorf("delete audit entry = %+v", entry)
	}

	_, err = f.subs.GetDetail(ctx, created.ID)
	wantKind(t, err, domain.KindNotFound)
	wantKind(t, f.subs.SoftDelete(ctx, created.ID, r.user), domain.KindNotFound)

	views, meta, err := f.subs.List(ctx, domain.SubscriptionFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 0 || meta.Total != 0 {
		t.Errorf("deleted subscription listed: %d rows, total %d", len(views), meta.Total)
	}
}

func TestSubscription_ListPagination(t *testing.T) {
	f := newFixture()
	r := f.seedRefs()
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		in := createInput(r, "Plan "+string(rune('A'+i)))
		if _, err := f.subs.Create(ctx, in, r.user); err != nil {
			t.Fatal(err)
		}
	}

	seen := map[uuid.UUID]int{}
	var prev time.Time
	for page := 1; page <= 3; page++ {
		views, meta, err := f.subs.List(ctx, domain.SubscriptionFilter{Page: page, Limit: 10})
		if err != nil {
			t.Fatal(err)
		}
		if meta.Total != 25 || meta.TotalPages != 3 {
			t.Fatalf("meta = %+v", meta)
		}
		for _, v := range views {
			seen[v.ID]++
			rec := f.st.sub(v.ID)
			if !prev.IsZero() && rec.CreatedAt.After(prev) {
				t.Errorf("rows not ordered newest first")
			}
			prev = rec.CreatedAt
		}
	}
	if len(seen) != 25 {
		t.Fatalf("pages covered %d distinct rows, want 25", len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("row %s appeared %d times", id, n)
		}
	}

	search := "plan c"
	views, _, err := f.subs.List(ctx, domain.SubscriptionFilter{Search: search})
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 1 || views[0].Plan != "Plan C" {
		t.Errorf("search %q returned %+v", search, views)
	}
}
