package service

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Hiroshi-99/ChampaMC/internal/model"
	"github.com/Hiroshi-99/ChampaMC/internal/notify"
	"github.com/Hiroshi-99/ChampaMC/internal/pricing"
	"github.com/Hiroshi-99/ChampaMC/internal/storage"
	"github.com/Hiroshi-99/ChampaMC/internal/validation"
)

// События уведомлений.
const (
	EventOrderCreated = "order_created"
	EventOrderStatus  = "order_status"
)

var (
	// ErrInvalidUsername возвращается для имени игрока вне формата 3–16 символов [A-Za-z0-9_].
	ErrInvalidUsername = errors.New("username must be 3-16 characters: letters, digits or underscore")
	// ErrInvalidPlatform возвращается для неизвестной платформы.
	ErrInvalidPlatform = errors.New("platform must be java or bedrock")
	// ErrMissingProof возвращается, если к заказу не приложено подтверждение оплаты.
	ErrMissingProof = errors.New("payment proof is required")
	// ErrInvalidStatus возвращается для неизвестного статуса заказа.
	ErrInvalidStatus = errors.New("status must be pending, completed or rejected")
)

// OrderRequest содержит данные формы оформления заказа.
type OrderRequest struct {
	Username string
	Platform model.Platform
	RankName string
	Proof    io.Reader
}

// OrderReceipt описывает оформленный заказ.
type OrderReceipt struct {
	Order    model.Order
	Quote    pricing.Quote
	ProofURL string
	// Demo выставляется, если заказ не был сохранён и возвращён в демо-режиме.
	Demo bool
}

// SubmitOrder проверяет заявку, сохраняет подтверждение оплаты и создаёт заказ в статусе pending.
// Списываемая сумма равна цене ранга с учётом скидки на момент оформления.
func (s *Service) SubmitOrder(ctx context.Context, req OrderRequest) (*OrderReceipt, error) {
	if !validation.IsValidUsername(req.Username) {
		return nil, ErrInvalidUsername
	}
	if !req.Platform.Valid() {
		return nil, ErrInvalidPlatform
	}
	if req.Proof == nil {
		return nil, ErrMissingProof
	}

	rank, err := s.repo.GetRankByName(ctx, req.RankName)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	quote := pricing.QuoteRank(*rank, now)

	order := model.Order{
		ID:        uuid.New(),
		Username:  req.Username,
		Platform:  req.Platform,
		RankName:  rank.Name,
		Price:     quote.EffectivePrice,
		Status:    model.OrderStatusPending,
		CreatedAt: now,
	}

	order.ProofPath, err = s.store.SaveImage(ctx, storage.DirProofs, req.Proof)
	if err != nil {
		if isUploadRejected(err) {
			return nil, err
		}
		return s.demoOrFail(order, quote, "store proof", err)
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		s.logger.Warn("order not persisted, proof left in storage",
			zap.String("order_id", order.ID.String()),
			zap.String("proof_path", order.ProofPath),
			zap.Error(err),
		)
		return s.demoOrFail(order, quote, "create order", err)
	}

	receipt := &OrderReceipt{
		Order:    order,
		Quote:    quote,
		ProofURL: s.store.URL(order.ProofPath),
	}

	if s.metrics != nil {
		s.metrics.OrdersCreatedTotal.WithLabelValues(order.RankName, string(order.Platform)).Inc()
		s.metrics.OrdersAmountTotal.WithLabelValues(order.RankName).Add(order.Price.InexactFloat64())
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("username", order.Username),
		zap.String("rank", order.RankName),
		zap.String("price", order.Price.StringFixed(2)),
	)

	s.dispatch(ctx, EventOrderCreated, notify.OrderCreatedMessage(order, quote, receipt.ProofURL))

	return receipt, nil
}

func (s *Service) demoOrFail(order model.Order, quote pricing.Quote, op string, err error) (*OrderReceipt, error) {
	if !s.demoFallback {
		s.logger.Error("order submission failed", zap.String("op", op), zap.Error(err))
		return nil, err
	}

	s.logger.Warn("demo fallback: order returned without persistence",
		zap.String("op", op),
		zap.String("order_id", order.ID.String()),
		zap.Error(err),
	)
	if s.metrics != nil {
		s.metrics.DemoOrdersTotal.Inc()
	}

	return &OrderReceipt{
		Order:    order,
		Quote:    quote,
		ProofURL: s.store.URL(order.ProofPath),
		Demo:     true,
	}, nil
}

func isUploadRejected(err error) bool {
	return errors.Is(err, storage.ErrEmptyFile) ||
		errors.Is(err, storage.ErrTooLarge) ||
		errors.Is(err, storage.ErrNotImage)
}

// ListOrders возвращает заказы по фильтру.
func (s *Service) ListOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.repo.ListOrders(ctx, f)
}

// GetOrder возвращает заказ по идентификатору.
func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// UpdateOrderStatus меняет статус заказа от имени сотрудника и уведомляет об этом чат.
// Возврат заказа в pending разрешён.
func (s *Service) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, notes *string, staff *model.Staff) (*model.Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	order, err := s.repo.UpdateOrderStatus(ctx, id, status, notes, staff.ID)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.OrderStatusChangesTotal.WithLabelValues(string(status)).Inc()
	}

	s.logger.Info("order status updated",
		zap.String("order_id", order.ID.String()),
		zap.String("status", string(status)),
		zap.Int64("staff_id", staff.ID),
	)

	s.dispatch(ctx, EventOrderStatus, notify.OrderStatusMessage(*order, staff.Email))

	return order, nil
}

// OrderStats возвращает количество заказов по статусам.
func (s *Service) OrderStats(ctx context.Context) (model.OrderStats, error) {
	return s.repo.OrderStats(ctx)
}

// ProofURL возвращает публичный адрес подтверждения оплаты заказа.
func (s *Service) ProofURL(o model.Order) string {
	return s.store.URL(o.ProofPath)
}
