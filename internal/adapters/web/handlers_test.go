package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"retail-pos/internal/app"
	"retail-pos/internal/core"
	"retail-pos/internal/logging"

	"github.com/xuri/excelize/v2"
)

const testSecret = "test-secret-that-is-long-enough-for-hs256"

// stubService implements the handful of ApplicationService methods these tests
// reach. Any other call panics through the nil embedded interface.
type stubService struct {
	app.ApplicationService

	mu       sync.Mutex
	pingErr  error
	user     *core.User
	authErr  error
	saleErr  error
	lastSale app.CreateSaleRequest
	lastUser app.CreateUserRequest
	summary  *core.CrateSummary
}

func (s *stubService) Ping(context.Context) error { return s.pingErr }

func (s *stubService) AuthenticateUser(_ context.Context, username, password string) (*core.User, error) {
	if s.authErr != nil {
		return nil, s.authErr
	}
	if username != s.user.Username || password != "secret1" {
		return nil, core.Authf("Invalid credentials")
	}
	return s.user, nil
}

func (s *stubService) GetUser(_ context.Context, id int) (*core.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, core.NotFoundf("User not found")
	}
	return s.user, nil
}

func (s *stubService) CreateUser(_ context.Context, req app.CreateUserRequest) (*core.User, error) {
	s.mu.Lock()
	s.lastUser = req
	s.mu.Unlock()
	return &core.User{ID: 99, Username: req.Username, FullName: req.FullName, Role: core.RoleStaff}, nil
}

func (s *stubService) ListProducts(context.Context, app.ListProductsRequest) (*app.ProductListResult, error) {
	return &app.ProductListResult{Products: []core.Product{{ID: 1, Name: "Tusker"}}}, nil
}

func (s *stubService) CreateSale(_ context.Context, req app.CreateSaleRequest) (*core.Sale, error) {
	s.mu.Lock()
	s.lastSale = req
	s.mu.Unlock()
	if s.saleErr != nil {
		return nil, s.saleErr
	}
	return &core.Sale{ID: 7, ReceiptNumber: "RCP-20261018-001", SoldBy: req.UserID}, nil
}

func (s *stubService) GetCrateSummary(context.Context, app.CrateSummaryRequest) (*core.CrateSummary, error) {
	return s.summary, nil
}

// memorySessions is an in-process SessionStore for logout tests.
type memorySessions struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func (m *memorySessions) Revoke(_ context.Context, id string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[id] = true
	return nil
}

func (m *memorySessions) IsRevoked(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revoked[id], nil
}

func newTestHandler(t *testing.T, svc *stubService, mutate func(*Options)) http.Handler {
	t.Helper()
	if svc.user == nil {
		svc.user = &core.User{ID: 1, Username: "cashier", FullName: "Cashier", Role: core.RoleStaff, IsActive: true}
	}
	opts := Options{
		JWTSecret:          testSecret,
		SessionTTL:         time.Hour,
		RequestTimeout:     5 * time.Second,
		LoginRatePerMinute: 100,
		Logger:             logging.Discard(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	return NewHandler(testContext(t), svc, opts)
}

func doRequest(h http.Handler, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, h http.Handler) *http.Cookie {
	t.Helper()
	rec := doRequest(h, http.MethodPost, "/api/auth/login", `{"username":"cashier","password":"secret1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: got %d, body %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == authCookie {
			return c
		}
	}
	t.Fatal("login: no auth cookie set")
	return nil
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var e errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return e
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, &stubService{}, nil)
	rec := doRequest(h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d", rec.Code)
	}

	h = newTestHandler(t, &stubService{pingErr: errors.New("connection refused")}, nil)
	rec = doRequest(h, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("degraded: got %d", rec.Code)
	}
}

func TestProtectedRouteRequiresSession(t *testing.T) {
	h := newTestHandler(t, &stubService{}, nil)
	rec := doRequest(h, http.MethodGet, "/api/products", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got %d", rec.Code)
	}
	e := decodeError(t, rec)
	if e.Code != core.CodeUnauthorized || e.RequestID == "" {
		t.Errorf("unexpected error body: %+v", e)
	}

	bad := &http.Cookie{Name: authCookie, Value: "not-a-jwt"}
	if rec := doRequest(h, http.MethodGet, "/api/products", "", bad); rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: got %d", rec.Code)
	}
}

func TestLoginAndMe(t *testing.T) {
	h := newTestHandler(t, &stubService{}, nil)
	cookie := login(t, h)
	if !cookie.HttpOnly || !cookie.Secure {
		t.Errorf("cookie flags: HttpOnly=%v Secure=%v", cookie.HttpOnly, cookie.Secure)
	}

	rec := doRequest(h, http.MethodGet, "/api/auth/me", "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: got %d", rec.Code)
	}
	var body struct {
		User core.User `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.User.Username != "cashier" {
		t.Errorf("me returned %+v", body.User)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("password")) {
		t.Errorf("response leaks password field: %s", rec.Body.String())
	}
}

func TestLoginFailures(t *testing.T) {
	h := newTestHandler(t, &stubService{}, nil)

	rec := doRequest(h, http.MethodPost, "/api/auth/login", `{"username":"cashier","password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: got %d", rec.Code)
	}

	rec = doRequest(h, http.MethodPost, "/api/auth/login", `{"username":"cashier"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing password: got %d", rec.Code)
	}
	if e := decodeError(t, rec); e.Fields["password"] == "" {
		t.Errorf("expected field error for password, got %+v", e)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	sessions := &memorySessions{revoked: map[string]bool{}}
	h := newTestHandler(t, &stubService{}, func(o *Options) { o.Sessions = sessions })
	cookie := login(t, h)

	rec := doRequest(h, http.MethodPost, "/api/auth/logout", "", cookie)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout: got %d", rec.Code)
	}
	if rec := doRequest(h, http.MethodGet, "/api/auth/me", "", cookie); rec.Code != http.StatusUnauthorized {
		t.Errorf("revoked token still accepted: %d", rec.Code)
	}
}

func TestCreateSale(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc, nil)
	cookie := login(t, h)

	rec := doRequest(h, http.MethodPost, "/api/sales",
		`{"items":[{"product_id":3,"quantity":2}],"payment_method":"cash"}`, cookie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastSale.UserID != 1 || len(svc.lastSale.Items) != 1 || svc.lastSale.Items[0].Quantity != 2 {
		t.Errorf("service received %+v", svc.lastSale)
	}
}

func TestCreateSaleValidation(t *testing.T) {
	h := newTestHandler(t, &stubService{}, nil)
	cookie := login(t, h)

	cases := []struct {
		name  string
		body  string
		field string
	}{
		{"no items", `{"items":[],"payment_method":"cash"}`, "items"},
		{"no payment method", `{"items":[{"product_id":1,"quantity":1}]}`, "payment_method"},
		{"zero quantity", `{"items":[{"product_id":1,"quantity":0}],"payment_method":"cash"}`, "items[0].quantity"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(h, http.MethodPost, "/api/sales", tc.body, cookie)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("got %d", rec.Code)
			}
			e := decodeError(t, rec)
			if e.Code != core.CodeValidation || e.Fields[tc.field] == "" {
				t.Errorf("expected field error on %s, got %+v", tc.field, e)
			}
		})
	}
}

func TestServiceErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{core.NotFoundf("Product with ID 9 not found"), http.StatusNotFound, core.CodeNotFound},
		{core.Statef(core.CodeInsufficientStock, "Insufficient stock"), http.StatusBadRequest, core.CodeInsufficientStock},
		{core.Statef(core.CodeProductInactive, "inactive"), http.StatusBadRequest, core.CodeProductInactive},
		{core.Conflictf("duplicate"), http.StatusConflict, core.CodeConflict},
		{errors.New("pq: connection reset"), http.StatusInternalServerError, core.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			h := newTestHandler(t, &stubService{saleErr: tc.err}, nil)
			cookie := login(t, h)
			rec := doRequest(h, http.MethodPost, "/api/sales",
				`{"items":[{"product_id":9,"quantity":1}],"payment_method":"cash"}`, cookie)
			if rec.Code != tc.status {
				t.Fatalf("got %d, want %d", rec.Code, tc.status)
			}
			e := decodeError(t, rec)
			if e.Code != tc.code {
				t.Errorf("code = %s, want %s", e.Code, tc.code)
			}
			if tc.status == http.StatusInternalServerError && strings.Contains(e.Error, "connection reset") {
				t.Errorf("internal detail leaked: %q", e.Error)
			}
		})
	}
}

func TestCreateUserRequiresAdmin(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc, nil)
	cookie := login(t, h)
	body := `{"username":"newbie","password":"secret1","full_name":"New Staff"}`

	if rec := doRequest(h, http.MethodPost, "/api/auth/users", body, cookie); rec.Code != http.StatusForbidden {
		t.Fatalf("staff: got %d", rec.Code)
	}

	admin := &stubService{user: &core.User{ID: 2, Username: "cashier", FullName: "Admin", Role: core.RoleAdmin, IsActive: true}}
	h = newTestHandler(t, admin, nil)
	cookie = login(t, h)
	rec := doRequest(h, http.MethodPost, "/api/auth/users", body, cookie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin: got %d: %s", rec.Code, rec.Body.String())
	}
	if admin.lastUser.ActorRole != core.RoleAdmin || admin.lastUser.Username != "newbie" {
		t.Errorf("service received %+v", admin.lastUser)
	}
}

func TestSessionFollowsAccountChanges(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc, nil)
	cookie := login(t, h)

	svc.user.IsActive = false
	rec := doRequest(h, http.MethodGet, "/api/auth/me", "", cookie)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("deactivated user: got %d", rec.Code)
	}
	if got := decodeError(t, rec); got.Code != core.CodeUnauthorized {
		t.Errorf("code = %q", got.Code)
	}
	if rec := doRequest(h, http.MethodGet, "/api/products", "", cookie); rec.Code != http.StatusUnauthorized {
		t.Errorf("deactivated user listing products: got %d", rec.Code)
	}

	svc.user = nil
	if rec := doRequest(h, http.MethodGet, "/api/auth/me", "", cookie); rec.Code != http.StatusUnauthorized {
		t.Errorf("deleted user: got %d", rec.Code)
	}

	admin := &stubService{user: &core.User{ID: 2, Username: "cashier", FullName: "Admin", Role: core.RoleAdmin, IsActive: true}}
	h = newTestHandler(t, admin, nil)
	cookie = login(t, h)
	admin.user.Role = core.RoleStaff
	body := `{"username":"newbie","password":"secret1","full_name":"New Staff"}`
	if rec := doRequest(h, http.MethodPost, "/api/auth/users", body, cookie); rec.Code != http.StatusForbidden {
		t.Fatalf("demoted admin: got %d", rec.Code)
	}
	if admin.lastUser.Username != "" {
		t.Errorf("demoted admin reached the service: %+v", admin.lastUser)
	}
}

func TestCreateUserRejectsOverlongPassword(t *testing.T) {
	admin := &stubService{user: &core.User{ID: 2, Username: "cashier", FullName: "Admin", Role: core.RoleAdmin, IsActive: true}}
	h := newTestHandler(t, admin, nil)
	cookie := login(t, h)

	body := `{"username":"newbie","password":"` + strings.Repeat("p", 73) + `","full_name":"New Staff"}`
	rec := doRequest(h, http.MethodPost, "/api/auth/users", body, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got %d: %s", rec.Code, rec.Body.String())
	}
	if e := decodeError(t, rec); e.Code != core.CodeValidation || e.Fields["password"] == "" {
		t.Errorf("unexpected error %+v", e)
	}
	if admin.lastUser.Username != "" {
		t.Errorf("request reached the service: %+v", admin.lastUser)
	}
}

func TestLoginRateLimit(t *testing.T) {
	h := newTestHandler(t, &stubService{}, func(o *Options) { o.LoginRatePerMinute = 2 })
	body := `{"username":"cashier","password":"wrong"}`
	for i := 0; i < 2; i++ {
		if rec := doRequest(h, http.MethodPost, "/api/auth/login", body); rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: got %d", i+1, rec.Code)
		}
	}
	rec := doRequest(h, http.MethodPost, "/api/auth/login", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third attempt: got %d", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != "RATE_LIMITED" {
		t.Errorf("code = %s", e.Code)
	}
}

func TestRequestBodyLimit(t *testing.T) {
	h := newTestHandler(t, &stubService{}, nil)
	cookie := login(t, h)
	big := `{"items":[],"notes":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	rec := doRequest(h, http.MethodPost, "/api/sales", big, cookie)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("got %d", rec.Code)
	}
}

func TestInvalidIDParam(t *testing.T) {
	h := newTestHandler(t, &stubService{}, nil)
	cookie := login(t, h)
	rec := doRequest(h, http.MethodGet, "/api/products/abc", "", cookie)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("non-numeric id: got %d", rec.Code)
	}
}

func TestCrateSummaryExport(t *testing.T) {
	svc := &stubService{summary: &core.CrateSummary{
		Summary: []core.CrateSummaryRow{
			{ProductID: 1, ProductName: "Tusker", TotalReceived: 5, TotalReturned: 2, CurrentBalance: 3, Records: 3},
		},
		TotalRecords: 3,
	}}
	h := newTestHandler(t, svc, nil)
	cookie := login(t, h)

	rec := doRequest(h, http.MethodGet, "/api/crates/summary/export", "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("content type = %q", ct)
	}

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(crateSummarySheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) < 2 || rows[1][1] != "Tusker" || rows[1][5] != "3" {
		t.Errorf("unexpected rows: %v", rows)
	}
}

// testContext stands in for testing.T.Context (Go 1.24+): a context that is
// canceled when the test finishes.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
