// Package handler содержит HTTP-обработчики API магазина рангов.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Hiroshi-99/ChampaMC/internal/middleware"
	"github.com/Hiroshi-99/ChampaMC/internal/model"
	"github.com/Hiroshi-99/ChampaMC/internal/repository"
	"github.com/Hiroshi-99/ChampaMC/internal/service"
	"github.com/Hiroshi-99/ChampaMC/internal/storage"
)

// multipartMemory ограничивает часть multipart-формы, удерживаемую в памяти.
const multipartMemory = 1 << 20

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Ping(ctx context.Context) error

	ListRanks(ctx context.Context) ([]service.RankQuote, error)
	GetRank(ctx context.Context, name string) (*service.RankQuote, error)
	PaymentQR(ctx context.Context) (*model.StoreSetting, error)
	SubmitOrder(ctx context.Context, req service.OrderRequest) (*service.OrderReceipt, error)
	ProofURL(o model.Order) string

	Login(ctx context.Context, email, password string) (int64, error)
	AuthorizeStaff(ctx context.Context, staffID int64) (*model.Staff, error)

	ListOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, notes *string, staff *model.Staff) (*model.Order, error)
	OrderStats(ctx context.Context) (model.OrderStats, error)

	CreateRank(ctx context.Context, in service.RankInput) (*service.RankQuote, error)
	UpdateRank(ctx context.Context, id int64, in service.RankInput) (*service.RankQuote, error)
	DeleteRank(ctx context.Context, id int64) error
	SetRankImage(ctx context.Context, id int64, r io.Reader) (*service.RankQuote, error)
	ApplyGlobalDiscount(ctx context.Context, percent int, expiresAt *time.Time) (int64, error)
	UpsertSetting(ctx context.Context, key, value string) (*model.StoreSetting, error)
}

// Config задаёт параметры HTTP-слоя.
type Config struct {
	UploadDir      string
	MaxUploadBytes int64
	Metrics        http.Handler
}

// Handler реализует HTTP-обработчики витрины и админ-панели.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	validate       *validator.Validate
	cfg            Config
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, cfg Config) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = storage.DefaultMaxBytes
	}

	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		cfg:            cfg,
	}
}

// Health проверяет доступность базы данных.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.logger.Error("health check failed", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ListRanks возвращает каталог рангов с ценами на текущий момент.
func (h *Handler) ListRanks(w http.ResponseWriter, r *http.Request) {
	ranks, err := h.service.ListRanks(r.Context())
	if err != nil {
		h.fail(w, "list ranks error", err)
		return
	}

	resp := make([]rankResponse, 0, len(ranks))
	for _, rq := range ranks {
		resp = append(resp, newRankResponse(rq))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// GetRank возвращает один ранг по названию.
func (h *Handler) GetRank(w http.ResponseWriter, r *http.Request) {
	rq, err := h.service.GetRank(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.fail(w, "get rank error", err)
		return
	}
	h.writeJSON(w, http.StatusOK, newRankResponse(*rq))
}

// PaymentQR возвращает адрес изображения QR-кода для оплаты.
func (h *Handler) PaymentQR(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.PaymentQR(r.Context())
	if err != nil {
		h.fail(w, "get payment qr error", err)
		return
	}
	h.writeJSON(w, http.StatusOK, newSettingResponse(*s))
}

// SubmitOrder принимает multipart-форму заказа: username, platform, rank и файл proof.
func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes+multipartMemory)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.rejectForm(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("proof")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	req := service.OrderRequest{
		Username: r.FormValue("username"),
		Platform: model.Platform(r.FormValue("platform")),
		RankName: r.FormValue("rank"),
	}
	if file != nil {
		defer file.Close()
		req.Proof = file
	}

	receipt, err := h.service.SubmitOrder(r.Context(), req)
	if err != nil {
		if errors.Is(err, repository.ErrRankNotFound) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		h.fail(w, "submit order error", err)
		return
	}

	resp := newOrderResponse(receipt.Order, receipt.ProofURL)
	resp.Demo = receipt.Demo
	resp.BasePrice = receipt.Quote.BasePrice.StringFixed(2)
	resp.DiscountPercent = receipt.Quote.DiscountPercent
	resp.DiscountActive = receipt.Quote.DiscountActive

	status := http.StatusCreated
	if receipt.Demo {
		status = http.StatusOK
	}
	h.writeJSON(w, status, resp)
}

func (h *Handler) rejectForm(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		http.Error(w, storage.ErrTooLarge.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
}

// fail переводит ошибку сервиса в HTTP-статус. Неизвестные ошибки логируются и возвращаются как 500.
func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidUsername),
		errors.Is(err, service.ErrInvalidPlatform),
		errors.Is(err, service.ErrMissingProof),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidRank),
		errors.Is(err, service.ErrInvalidSetting),
		errors.Is(err, repository.ErrInvalidDiscount),
		errors.Is(err, storage.ErrEmptyFile),
		errors.Is(err, storage.ErrNotImage):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, storage.ErrTooLarge):
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
	case errors.Is(err, repository.ErrRankNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrSettingNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, repository.ErrRankExists):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrInvalidCredentials):
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	case errors.Is(err, service.ErrForbidden):
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	default:
		h.logger.Error(msg, zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// decode читает JSON-тело запроса и проверяет его тегами validate.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}
