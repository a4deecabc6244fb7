package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Hiroshi-99/ChampaMC/internal/middleware"
	"github.com/Hiroshi-99/ChampaMC/internal/model"
	"github.com/Hiroshi-99/ChampaMC/internal/service"
)

const maxOrderPageSize = 200

type staffKey struct{}

func staffFromContext(ctx context.Context) (*model.Staff, bool) {
	st, ok := ctx.Value(staffKey{}).(*model.Staff)
	return st, ok
}

// requireStaff проверяет, что владелец сессии по-прежнему находится в списке допуска.
func (h *Handler) requireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		staffID, ok := middleware.GetStaffIDFromContext(r.Context())
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		st, err := h.service.AuthorizeStaff(r.Context(), staffID)
		if err != nil {
			if errors.Is(err, service.ErrForbidden) {
				h.authMiddleware.ClearAuthCookie(w)
			}
			h.fail(w, "authorize staff error", err)
			return
		}

		ctx := context.WithValue(r.Context(), staffKey{}, st)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Login проверяет учётные данные сотрудника и выдаёт cookie сессии.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	staffID, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, "login staff error", err)
		return
	}

	if err := h.authMiddleware.SetAuthCookie(w, staffID); err != nil {
		h.fail(w, "issue session error", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Logout завершает сессию сотрудника.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// ListOrders возвращает заказы с фильтром по статусу и подстроке ника.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := queryInt(q.Get("limit"), 0)
	if err != nil || limit < 0 {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return
	}
	if limit > maxOrderPageSize {
		limit = maxOrderPageSize
	}

	offset, err := queryInt(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		http.Error(w, "invalid offset", http.StatusBadRequest)
		return
	}

	orders, err := h.service.ListOrders(r.Context(), model.OrderFilter{
		Status: model.OrderStatus(q.Get("status")),
		Query:  q.Get("q"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.fail(w, "list orders error", err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, newOrderResponse(o, h.service.ProofURL(o)))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// GetOrder возвращает заказ по идентификатору.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	o, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.fail(w, "get order error", err)
		return
	}
	h.writeJSON(w, http.StatusOK, newOrderResponse(*o, h.service.ProofURL(*o)))
}

// UpdateOrder меняет статус и заметки заказа.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req orderStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	st, ok := staffFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	o, err := h.service.UpdateOrderStatus(r.Context(), id, model.OrderStatus(req.Status), req.Notes, st)
	if err != nil {
		h.fail(w, "update order error", err)
		return
	}
	h.writeJSON(w, http.StatusOK, newOrderResponse(*o, h.service.ProofURL(*o)))
}

// Stats возвращает количество заказов по статусам.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.OrderStats(r.Context())
	if err != nil {
		h.fail(w, "order stats error", err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// CreateRank добавляет ранг в каталог.
func (h *Handler) CreateRank(w http.ResponseWriter, r *http.Request) {
	var req rankRequest
	if !h.decode(w, r, &req) {
		return
	}

	rq, err := h.service.CreateRank(r.Context(), req.toInput())
	if err != nil {
		h.fail(w, "create rank error", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, newRankResponse(*rq))
}

// UpdateRank изменяет ранг.
func (h *Handler) UpdateRank(w http.ResponseWriter, r *http.Request) {
	id, ok := rankIDParam(w, r)
	if !ok {
		return
	}

	var req rankRequest
	if !h.decode(w, r, &req) {
		return
	}

	rq, err := h.service.UpdateRank(r.Context(), id, req.toInput())
	if err != nil {
		h.fail(w, "update rank error", err)
		return
	}
	h.writeJSON(w, http.StatusOK, newRankResponse(*rq))
}

// DeleteRank удаляет ранг.
func (h *Handler) DeleteRank(w http.ResponseWriter, r *http.Request) {
	id, ok := rankIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteRank(r.Context(), id); err != nil {
		h.fail(w, "delete rank error", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadRankImage сохраняет изображение ранга из поля формы image.
func (h *Handler) UploadRankImage(w http.ResponseWriter, r *http.Request) {
	id, ok := rankIDParam(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.rejectForm(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "image file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	rq, err := h.service.SetRankImage(r.Context(), id, file)
	if err != nil {
		h.fail(w, "upload rank image error", err)
		return
	}
	h.writeJSON(w, http.StatusOK, newRankResponse(*rq))
}

// ApplyDiscount применяет одну скидку ко всему каталогу.
func (h *Handler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	var req discountRequest
	if !h.decode(w, r, &req) {
		return
	}

	n, err := h.service.ApplyGlobalDiscount(r.Context(), *req.Percent, req.ExpiresAt)
	if err != nil {
		h.fail(w, "apply discount error", err)
		return
	}

	if st, ok := staffFromContext(r.Context()); ok {
		h.logger.Info("catalog discount changed",
			zap.Int64("staff_id", st.ID),
			zap.Int("percent", *req.Percent),
		)
	}

	h.writeJSON(w, http.StatusOK, discountResponse{Percent: *req.Percent, ExpiresAt: req.ExpiresAt, Ranks: n})
}

// UpsertSetting изменяет настройку магазина.
func (h *Handler) UpsertSetting(w http.ResponseWriter, r *http.Request) {
	var req settingRequest
	if !h.decode(w, r, &req) {
		return
	}

	key := chi.URLParam(r, "key")
	if key == model.SettingPaymentQR && req.Value != "" {
		if err := h.validate.Var(req.Value, "url"); err != nil {
			http.Error(w, "payment qr value must be a url", http.StatusBadRequest)
			return
		}
	}

	s, err := h.service.UpsertSetting(r.Context(), key, req.Value)
	if err != nil {
		h.fail(w, "upsert setting error", err)
		return
	}
	h.writeJSON(w, http.StatusOK, newSettingResponse(*s))
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func rankIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid rank id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func queryInt(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
