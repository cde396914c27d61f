package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mmoldabe-dev/subtrack/internal/domain"
	"github.com/mmoldabe-dev/subtrack/internal/middleware"
	"github.com/mmoldabe-dev/subtrack/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const (
	testSecret     = "jwt-secret"
	internalSecret = "internal"
)

type stubSubs struct {
	createErr  error
	updateErr  error
	gotFilter  domain.SubscriptionFilter
	gotActor   uuid.UUID
	gotUpdate  domain.UpdateSubscriptionInput
	sweepCalls int
	sweepRes   domain.SweepResult
}

func (s *stubSubs) Create(_ context.Context, in domain.CreateSubscriptionInput, actor uuid.UUID) (*domain.SubscriptionView, error) {
	s.gotActor = actor
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &domain.SubscriptionView{ID: uuid.New(), Plan: in.Plan, Price: in.Price.String(), Version: 1}, nil
}

func (s *stubSubs) List(_ context.Context, f domain.SubscriptionFilter) ([]domain.SubscriptionView, domain.PageMeta, error) {
	s.gotFilter = f
	return []domain.SubscriptionView{}, domain.NewPageMeta(1, 10, 0), nil
}

func (s *stubSubs) GetDetail(context.Context, uuid.UUID) (*domain.SubscriptionDetailView, error) {
	return nil, domain.NotFound("subscription not found")
}

func (s *stubSubs) Update(_ context.Context, _ uuid.UUID, in domain.UpdateSubscriptionInput, _ uuid.UUID) (*domain.SubscriptionView, error) {
	s.gotUpdate = in
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	return &domain.SubscriptionView{Version: in.Version + 1}, nil
}

func (s *stubSubs) SoftDelete(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (s *stubSubs) SweepDueTransitions(context.Context) (domain.SweepResult, error) {
	s.sweepCalls++
	return s.sweepRes, nil
}

type stubDashboard struct{}

func (stubDashboard) KPIs(context.Context) (domain.KPIs, error) { return domain.KPIs{}, nil }
func (stubDashboard) SpendByDepartment(context.Context) ([]domain.DepartmentSpend, error) {
	return []domain.DepartmentSpend{}, nil
}
func (stubDashboard) TopByPrice(context.Context) ([]domain.TopSubscription, error) {
	return []domain.TopSubscription{}, nil
}
func (stubDashboard) UpcomingRenewals(context.Context, int) ([]domain.UpcomingRenewal, error) {
	return []domain.UpcomingRenewal{}, nil
}
func (stubDashboard) Snapshot(context.Context) (domain.DashboardSnapshot, error) {
	return domain.DashboardSnapshot{}, nil
}

type stubDepartments struct{}

func (stubDepartments) Create(_ context.Context, in domain.DepartmentInput, _ uuid.UUID) (*domain.Department, error) {
	return &domain.Department{ID: 1, Description: in.Description}, nil
}
func (stubDepartments) List(context.Context) ([]domain.Department, error) {
	return []domain.Department{}, nil
}
func (stubDepartments) Update(context.Context, int64, domain.DepartmentInput, uuid.UUID) (*domain.Department, error) {
	return &domain.Department{}, nil
}
func (stubDepartments) Delete(context.Context, int64, uuid.UUID) error {
	return domain.Conflict("department has active subscriptions and cannot be deleted")
}

type stubCatalog struct{}

func (stubCatalog) Create(context.Context, domain.ServiceInput, uuid.UUID) (*domain.Service, error) {
	return &domain.Service{}, nil
}
func (stubCatalog) List(context.Context) ([]domain.Service, error) { return []domain.Service{}, nil }
func (stubCatalog) Update(context.Context, uuid.UUID, domain.ServiceInput, uuid.UUID) (*domain.Service, error) {
	return &domain.Service{}, nil
}
func (stubCatalog) Delete(context.Context, uuid.UUID, uuid.UUID) error { return nil }

type stubAuditLog struct {
	got domain.AuditFilter
}

func (s *stubAuditLog) List(_ context.Context, f domain.AuditFilter) ([]domain.AuditEntry, domain.PageMeta, error) {
	s.got = f
	return []domain.AuditEntry{}, domain.NewPageMeta(1, 10, 0), nil
}

type stubUsers struct {
	got domain.UserInput
}

func (s *stubUsers) Create(_ context.Context, in domain.UserInput, _ uuid.UUID) (*domain.User, error) {
	s.got = in
	if in.Email == "taken@example.org" {
		return nil, domain.Conflict("email already registered")
	}
	return &domain.User{ID: uuid.New(), Name: in.Name, Email: in.Email, PasswordHash: "$2a$hash", Role: in.Role, Active: true}, nil
}

type stubReady struct{ err error }

func (s stubReady) CheckReady(context.Context) error { return s.err }

type env struct {
	router http.Handler
	subs   *stubSubs
	users  *stubUsers
	logs   *stubAuditLog
}

func newEnv(ready error) *env {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	subs := &stubSubs{}
	logs := &stubAuditLog{}
	users := &stubUsers{}
	h := NewHandler(Services{
		Subscriptions: subs,
		Dashboard:     stubDashboard{},
		Departments:   stubDepartments{},
		Catalog:       stubCatalog{},
		AuditLog:      logs,
		Users:         users,
	}, stubReady{err: ready}, log)

	router := h.SetupRouter(RouterConfig{
		Auth:           middleware.NewAuthenticator(testSecret, "token", log),
		InternalSecret: internalSecret,
		AllowedOrigins: []string{"http://localhost:3000"},
	})
	return &env{router: router, subs: subs, users: users, logs: logs}
}

func token(t *testing.T, role domain.Role) string {
	t.Helper()
	tok, err := middleware.SignToken([]byte(testSecret),
		middleware.Principal{UserID: uuid.New(), Name: "Ana", Role: role}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (e *env) do(t *testing.T, method, path, body string, role domain.Role) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if role != "" {
		req.AddCookie(&http.Cookie{Name: "token", Value: token(t, role)})
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Meta  json.RawMessage `json:"meta"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
	StatusCode int `json:"statusCode"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid envelope %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestRouter_Access(t *testing.T) {
	e := newEnv(nil)
	createBody := `{"plan":"Pro"}`
	userBody := `{"name":"Dana","email":"dana@example.org","password":"s3cret-pass","role":"VIEWER"}`

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		role   domain.Role
		want   int
	}{
		{"anonymous read", http.MethodGet, "/subscriptions", "", "", http.StatusUnauthorized},
		{"viewer read", http.MethodGet, "/subscriptions", "", domain.RoleViewer, http.StatusOK},
		{"viewer write", http.MethodPost, "/subscriptions", createBody, domain.RoleViewer, http.StatusForbidden},
		{"manager write", http.MethodPost, "/subscriptions", createBody, domain.RoleManager, http.StatusCreated},
		{"manager logs", http.MethodGet, "/logs", "", domain.RoleManager, http.StatusForbidden},
		{"admin logs", http.MethodGet, "/logs", "", domain.RoleAdmin, http.StatusOK},
		{"manager creates user", http.MethodPost, "/users", userBody, domain.RoleManager, http.StatusForbidden},
		{"admin creates user", http.MethodPost, "/users", userBody, domain.RoleAdmin, http.StatusCreated},
		{"dashboard", http.MethodGet, "/dashboard", "", domain.RoleViewer, http.StatusOK},
		{"health is open", http.MethodGet, "/health", "", "", http.StatusOK},
		{"sweep without secret", http.MethodPost, "/system/sweep", "", domain.RoleAdmin, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, tt.method, tt.path, tt.body, tt.role)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestRouter_SweepWithSecret(t *testing.T) {
	tests := []struct {
		name     string
		res      domain.SweepResult
		wantData string
	}{
		{"transitions", domain.SweepResult{ExpiredCount: 2, PendingCount: 1}, `{"expired_count":2,"pending_count":1}`},
		{"nothing due", domain.SweepResult{}, `{"expired_count":0,"pending_count":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(nil)
			e.subs.sweepRes = tt.res
			req := httptest.NewRequest(http.MethodPost, "/system/sweep", nil)
			req.Header.Set(middleware.InternalSecretHeader, internalSecret)
			rec := httptest.NewRecorder()

			e.router.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK || e.subs.sweepCalls != 1 {
				t.Fatalf("status = %d, calls = %d", rec.Code, e.subs.sweepCalls)
			}
			env := decode(t, rec)
			if !env.OK || string(env.Data) != tt.wantData {
				t.Errorf("ok = %v, data = %s, want %s", env.OK, env.Data, tt.wantData)
			}
		})
	}
}

func TestRouter_SweepIsCounted(t *testing.T) {
	e := newEnv(nil)
	before := testutil.ToFloat64(scheduler.SweepRuns.WithLabelValues("success"))

	req := httptest.NewRequest(http.MethodPost, "/system/sweep", nil)
	req.Header.Set(middleware.InternalSecretHeader, internalSecret)
	e.router.ServeHTTP(httptest.NewRecorder(), req)

	if got := testutil.ToFloat64(scheduler.SweepRuns.WithLabelValues("success")) - before; got != 1 {
		t.Errorf("sweep runs delta = %v, want 1", got)
	}
}

func TestRouter_ErrorEnvelope(t *testing.T) {
	e := newEnv(nil)
	e.subs.updateErr = domain.Conflict("subscription was modified by another user, reload and retry")

	rec := e.do(t, http.MethodPatch, "/subscriptions/"+uuid.NewString(), `{"price":"150.00","version":1}`, domain.RoleAdmin)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	env := decode(t, rec)
	if env.OK || env.StatusCode != http.StatusConflict || env.Error == nil ||
		!strings.Contains(env.Error.Message, "reload") {
		t.Errorf("envelope = %+v", env)
	}
	if e.subs.gotUpdate.Version != 1 || !e.subs.gotUpdate.Price.IsSet() || e.subs.gotUpdate.EndDate.IsSet() {
		t.Errorf("decoded update = %+v", e.subs.gotUpdate)
	}
}

func TestRouter_Validation(t *testing.T) {
	e := newEnv(nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"bad uuid", http.MethodGet, "/subscriptions/not-a-uuid", ""},
		{"bad status filter", http.MethodGet, "/subscriptions?status=PAUSED", ""},
		{"bad department filter", http.MethodGet, "/subscriptions?department_id=-1", ""},
		{"bad page", http.MethodGet, "/subscriptions?page=abc", ""},
		{"bad json", http.MethodPost, "/subscriptions", `{"plan":`},
		{"empty body", http.MethodPost, "/departments", ""},
		{"bad department id", http.MethodPatch, "/departments/1.5", `{"description":"x"}`},
		{"bad order", http.MethodGet, "/logs?order=sideways", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, tt.method, tt.path, tt.body, domain.RoleAdmin)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
			if env := decode(t, rec); env.OK || env.Error == nil {
				t.Errorf("envelope = %+v", env)
			}
		})
	}
}

func TestRouter_ListFilters(t *testing.T) {
	e := newEnv(nil)
	svc := uuid.New()

	rec := e.do(t, http.MethodGet,
		"/subscriptions?status=active&service_id="+svc.String()+"&department_id=3&search=pro&page=2&limit=20", "", domain.RoleViewer)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	f := e.subs.gotFilter
	if f.Status == nil || *f.Status != domain.StatusActive {
		t.Errorf("status = %v", f.Status)
	}
	if f.ServiceID == nil || *f.ServiceID != svc {
		t.Errorf("service id = %v", f.ServiceID)
	}
	if f.DepartmentID == nil || *f.DepartmentID != 3 || f.Search != "pro" || f.Page != 2 || f.Limit != 20 {
		t.Errorf("filter = %+v", f)
	}
	if env := decode(t, rec); string(env.Data) != "[]" || len(env.Meta) == 0 {
		t.Errorf("envelope data=%s meta=%s", env.Data, env.Meta)
	}
}

func TestRouter_LogFilters(t *testing.T) {
	e := newEnv(nil)
	rec := e.do(t, http.MethodGet, "/logs?order=asc&action=update&entity=subscription", "", domain.RoleAdmin)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	f := e.logs.got
	if !f.Ascending || f.Action == nil || *f.Action != domain.ActionUpdate ||
		f.Entity == nil || *f.Entity != domain.EntitySubscription {
		t.Errorf("filter = %+v", f)
	}
}

func TestRouter_BlockedDeleteIsConflict(t *testing.T) {
	e := newEnv(nil)
	rec := e.do(t, http.MethodDelete, "/departments/1", "", domain.RoleManager)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestRouter_HealthUnavailable(t *testing.T) {
	e := newEnv(errors.New("connection refused"))
	rec := e.do(t, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestRouter_CreateUser(t *testing.T) {
	e := newEnv(nil)

	rec := e.do(t, http.MethodPost, "/users",
		`{"name":"Dana","email":"dana@example.org","password":"s3cret-pass","role":"MANAGER"}`, domain.RoleAdmin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if e.users.got.Role != domain.RoleManager || e.users.got.Password != "s3cret-pass" {
		t.Errorf("input = %+v", e.users.got)
	}
	if strings.Contains(rec.Body.String(), "hash") {
		t.Errorf("response leaks the password hash: %s", rec.Body.String())
	}

	rec = e.do(t, http.MethodPost, "/users",
		`{"name":"Dana","email":"taken@example.org","password":"s3cret-pass","role":"VIEWER"}`, domain.RoleAdmin)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate email status = %d, want 409", rec.Code)
	}
	if env := decode(t, rec); env.Error == nil || env.Error.Message != "email already registered" {
		t.Errorf("envelope = %+v", env)
	}
}
