package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Hiroshi-99/ChampaMC/internal/middleware"
	"github.com/Hiroshi-99/ChampaMC/internal/model"
	"github.com/Hiroshi-99/ChampaMC/internal/pricing"
	"github.com/Hiroshi-99/ChampaMC/internal/repository"
	"github.com/Hiroshi-99/ChampaMC/internal/service"
	"github.com/Hiroshi-99/ChampaMC/internal/storage"
)

type stubService struct {
	pingErr error

	ranksResp []service.RankQuote
	ranksErr  error

	qrResp *model.StoreSetting
	qrErr  error

	receipt    *service.OrderReceipt
	submitErr  error
	submitted  *service.OrderRequest
	proofBytes []byte

	loginID  int64
	loginErr error

	staff        *model.Staff
	authorizeErr error

	ordersResp []model.Order
	ordersErr  error
	lastFilter model.OrderFilter

	updatedOrder *model.Order
	updateErr    error

	discountN   int64
	discountErr error

	settingErr error
}

func (s *stubService) Ping(ctx context.Context) error { return s.pingErr }

func (s *stubService) ListRanks(ctx context.Context) ([]service.RankQuote, error) {
	return s.ranksResp, s.ranksErr
}

func (s *stubService) GetRank(ctx context.Context, name string) (*service.RankQuote, error) {
	for _, rq := range s.ranksResp {
		if rq.Rank.Name == name {
			return &rq, nil
		}
	}
	return nil, repository.ErrRankNotFound
}

func (s *stubService) PaymentQR(ctx context.Context) (*model.StoreSetting, error) {
	return s.qrResp, s.qrErr
}

func (s *stubService) SubmitOrder(ctx context.Context, req service.OrderRequest) (*service.OrderReceipt, error) {
	s.submitted = &req
	if req.Proof != nil {
		s.proofBytes, _ = io.ReadAll(req.Proof)
	}
	return s.receipt, s.submitErr
}

func (s *stubService) ProofURL(o model.Order) string {
	return "http://store.test/uploads/" + o.ProofPath
}

func (s *stubService) Login(ctx context.Context, email, password string) (int64, error) {
	return s.loginID, s.loginErr
}

func (s *stubService) AuthorizeStaff(ctx context.Context, staffID int64) (*model.Staff, error) {
	return s.staff, s.authorizeErr
}

func (s *stubService) ListOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, error) {
	s.lastFilter = f
	return s.ordersResp, s.ordersErr
}

func (s *stubService) GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	for _, o := range s.ordersResp {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (s *stubService) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, notes *string, staff *model.Staff) (*model.Order, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	o := *s.updatedOrder
	o.Status = status
	o.Notes = notes
	o.ProcessedBy = &staff.ID
	return &o, nil
}

func (s *stubService) OrderStats(ctx context.Context) (model.OrderStats, error) {
	return model.OrderStats{Pending: 2, Completed: 1}, nil
}

func (s *stubService) CreateRank(ctx context.Context, in service.RankInput) (*service.RankQuote, error) {
	rk := model.Rank{ID: 1, Name: in.Name, Price: in.Price, DiscountPercent: in.DiscountPercent}
	return &service.RankQuote{Rank: rk, Quote: pricing.QuoteRank(rk, time.Now())}, nil
}

func (s *stubService) UpdateRank(ctx context.Context, id int64, in service.RankInput) (*service.RankQuote, error) {
	return nil, repository.ErrRankNotFound
}

func (s *stubService) DeleteRank(ctx context.Context, id int64) error { return nil }

func (s *stubService) SetRankImage(ctx context.Context, id int64, r io.Reader) (*service.RankQuote, error) {
	return nil, storage.ErrNotImage
}

func (s *stubService) ApplyGlobalDiscount(ctx context.Context, percent int, expiresAt *time.Time) (int64, error) {
	return s.discountN, s.discountErr
}

func (s *stubService) UpsertSetting(ctx context.Context, key, value string) (*model.StoreSetting, error) {
	if s.settingErr != nil {
		return nil, s.settingErr
	}
	return &model.StoreSetting{Key: key, Value: value}, nil
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret", time.Hour)

	return NewHandler(svc, logger, auth, Config{UploadDir: t.TempDir()})
}

func sessionCookie(t *testing.T, h *Handler, staffID int64) *http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	if err := h.authMiddleware.SetAuthCookie(rec, staffID); err != nil {
		t.Fatalf("SetAuthCookie error: %v", err)
	}
	return rec.Result().Cookies()[0]
}

func orderForm(t *testing.T, fields map[string]string, proof []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if proof != nil {
		fw, err := mw.CreateFormFile("proof", "proof.png")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(proof); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func vipQuote() service.RankQuote {
	expires := time.Now().Add(24 * time.Hour)
	rk := model.Rank{
		ID:                1,
		Name:              "VIP",
		Price:             decimal.RequireFromString("5.00"),
		DiscountPercent:   20,
		DiscountExpiresAt: &expires,
	}
	return service.RankQuote{Rank: rk, Quote: pricing.QuoteRank(rk, time.Now())}
}

func TestListRanks_JSONResponse(t *testing.T) {
	svc := &stubService{ranksResp: []service.RankQuote{vipQuote()}}
	h := newTestHandler(t, svc)

	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ranks", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp []rankResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("expected 1 rank, got %d", len(resp))
	}
	if resp[0].Price != "5.00" || resp[0].EffectivePrice != "4.00" || !resp[0].DiscountActive {
		t.Fatalf("unexpected rank: %+v", resp[0])
	}
}

func TestGetRank_NotFound(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ranks/MVP", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestPaymentQR_NotConfigured(t *testing.T) {
	h := newTestHandler(t, &stubService{qrErr: repository.ErrSettingNotFound})

	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/settings/payment-qr", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestSubmitOrder_Created(t *testing.T) {
	order := model.Order{
		ID:        uuid.New(),
		Username:  "Steve_01",
		Platform:  model.PlatformJava,
		RankName:  "VIP",
		Price:     decimal.RequireFromString("4"),
		Status:    model.OrderStatusPending,
		ProofPath: "proofs/abc.png",
	}
	svc := &stubService{receipt: &service.OrderReceipt{
		Order:    order,
		Quote:    vipQuote().Quote,
		ProofURL: "http://store.test/uploads/proofs/abc.png",
	}}
	h := newTestHandler(t, svc)

	body, contentType := orderForm(t, map[string]string{
		"username": "Steve_01",
		"platform": "java",
		"rank":     "VIP",
	}, []byte("png-bytes"))

	req := httptest.NewRequest(http.MethodPost, "/api/orders", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d, body %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if svc.submitted.Username != "Steve_01" || svc.submitted.Platform != model.PlatformJava || svc.submitted.RankName != "VIP" {
		t.Fatalf("unexpected submitted request: %+v", svc.submitted)
	}
	if string(svc.proofBytes) != "png-bytes" {
		t.Fatalf("proof bytes = %q", svc.proofBytes)
	}

	var resp orderResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Price != "4.00" || resp.BasePrice != "5.00" || resp.Status != "pending" || resp.Demo {
		t.Fatalf("unexpected order response: %+v", resp)
	}
}

func TestSubmitOrder_DemoFallback(t *testing.T) {
	svc := &stubService{receipt: &service.OrderReceipt{
		Order: model.Order{ID: uuid.New(), Price: decimal.NewFromInt(5), Status: model.OrderStatusPending},
		Demo:  true,
	}}
	h := newTestHandler(t, svc)

	body, contentType := orderForm(t, map[string]string{"username": "steve", "platform": "java", "rank": "VIP"}, []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/orders", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), `"demo":true`) {
		t.Fatalf("demo flag missing: %s", rec.Body.String())
	}
}

func TestSubmitOrder_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "bad username", err: service.ErrInvalidUsername, want: http.StatusUnprocessableEntity},
		{name: "unknown rank", err: repository.ErrRankNotFound, want: http.StatusUnprocessableEntity},
		{name: "not an image", err: storage.ErrNotImage, want: http.StatusUnprocessableEntity},
		{name: "too large", err: storage.ErrTooLarge, want: http.StatusRequestEntityTooLarge},
		{name: "backend failure", err: context.DeadlineExceeded, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubService{submitErr: tt.err})

			body, contentType := orderForm(t, map[string]string{"username": "steve", "platform": "java", "rank": "VIP"}, []byte("x"))
			req := httptest.NewRequest(http.MethodPost, "/api/orders", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()

			h.SubmitOrder(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestSubmitOrder_NotMultipart(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{"username":"steve"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.SubmitOrder(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	h := newTestHandler(t, &stubService{loginID: 3})

	body, _ := json.Marshal(loginRequest{Email: "admin@champa.mc", Password: "secret"})
	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/admin/login", bytes.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if len(rec.Result().Cookies()) != 1 {
		t.Fatalf("expected session cookie")
	}
}

func TestLogin_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{name: "invalid credentials", body: `{"email":"admin@champa.mc","password":"x"}`, err: service.ErrInvalidCredentials, want: http.StatusUnauthorized},
		{name: "malformed email", body: `{"email":"admin","password":"x"}`, want: http.StatusBadRequest},
		{name: "missing password", body: `{"email":"admin@champa.mc"}`, want: http.StatusBadRequest},
		{name: "broken json", body: `{`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubService{loginErr: tt.err})

			rec := httptest.NewRecorder()
			h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(tt.body)))

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestAdminRoutes_RequireSession(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAdminRoutes_RemovedStaffIsForbidden(t *testing.T) {
	h := newTestHandler(t, &stubService{authorizeErr: service.ErrForbidden})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
	req.AddCookie(sessionCookie(t, h, 5))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestListOrders_Filter(t *testing.T) {
	svc := &stubService{
		staff:      &model.Staff{ID: 1, Email: "admin@champa.mc"},
		ordersResp: []model.Order{{ID: uuid.New(), Username: "steve", Price: decimal.NewFromInt(5), ProofPath: "proofs/a.png"}},
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/orders?status=pending&q=ste&limit=500&offset=10", nil)
	req.AddCookie(sessionCookie(t, h, 1))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	want := model.OrderFilter{Status: model.OrderStatusPending, Query: "ste", Limit: maxOrderPageSize, Offset: 10}
	if svc.lastFilter != want {
		t.Fatalf("filter = %+v, want %+v", svc.lastFilter, want)
	}

	var resp []orderResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 || resp[0].ProofURL != "http://store.test/uploads/proofs/a.png" {
		t.Fatalf("unexpected orders: %+v", resp)
	}
}

func TestListOrders_BadPagination(t *testing.T) {
	h := newTestHandler(t, &stubService{staff: &model.Staff{ID: 1}})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/orders?limit=abc", nil)
	req.AddCookie(sessionCookie(t, h, 1))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestUpdateOrder(t *testing.T) {
	order := &model.Order{ID: uuid.New(), Username: "steve", Price: decimal.NewFromInt(5), Status: model.OrderStatusPending}
	svc := &stubService{staff: &model.Staff{ID: 9, Email: "mod@champa.mc"}, updatedOrder: order}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{name: "completed", path: order.ID.String(), body: `{"status":"completed","notes":"granted"}`, want: http.StatusOK},
		{name: "unknown status", path: order.ID.String(), body: `{"status":"shipped"}`, want: http.StatusBadRequest},
		{name: "bad id", path: "not-a-uuid", body: `{"status":"completed"}`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, "/api/admin/orders/"+tt.path, strings.NewReader(tt.body))
			req.AddCookie(sessionCookie(t, h, 9))
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d, body %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestApplyDiscount(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{name: "applied", body: `{"percent":15,"expires_at":"2030-01-01T00:00:00Z"}`, want: http.StatusOK},
		{name: "out of range", body: `{"percent":150}`, err: repository.ErrInvalidDiscount, want: http.StatusUnprocessableEntity},
		{name: "missing percent", body: `{}`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubService{staff: &model.Staff{ID: 1}, discountN: 4, discountErr: tt.err})

			req := httptest.NewRequest(http.MethodPost, "/api/admin/discounts", strings.NewReader(tt.body))
			req.AddCookie(sessionCookie(t, h, 1))
			rec := httptest.NewRecorder()

			h.SetupRouter().ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestCreateRank_Created(t *testing.T) {
	h := newTestHandler(t, &stubService{staff: &model.Staff{ID: 1}})

	req := httptest.NewRequest(http.MethodPost, "/api/admin/ranks", strings.NewReader(`{"name":"MVP","price":"12.50","color":"#ffaa00"}`))
	req.AddCookie(sessionCookie(t, h, 1))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d, body %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var resp rankResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Name != "MVP" || resp.Price != "12.50" {
		t.Fatalf("unexpected rank: %+v", resp)
	}
}

func TestUpsertSetting_PaymentQRMustBeURL(t *testing.T) {
	h := newTestHandler(t, &stubService{staff: &model.Staff{ID: 1}})
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodPut, "/api/admin/settings/payment_qr_url", strings.NewReader(`{"value":"not a url"}`))
	req.AddCookie(sessionCookie(t, h, 1))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	req = httptest.NewRequest(http.MethodPut, "/api/admin/settings/payment_qr_url", strings.NewReader(`{"value":"https://cdn.champa.mc/qr.png"}`))
	req.AddCookie(sessionCookie(t, h, 1))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, &stubService{pingErr: context.DeadlineExceeded})

	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestUploads_ServesFilesWithoutListing(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	if err := os.MkdirAll(filepath.Join(h.cfg.UploadDir, "proofs"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(h.cfg.UploadDir, "proofs", "a.png"), []byte("img"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	router := h.SetupRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/proofs/a.png", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "img" {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/proofs/", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("directory listing status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
