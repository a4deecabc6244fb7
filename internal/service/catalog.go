package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Hiroshi-99/ChampaMC/internal/model"
	"github.com/Hiroshi-99/ChampaMC/internal/pricing"
	"github.com/Hiroshi-99/ChampaMC/internal/repository"
	"github.com/Hiroshi-99/ChampaMC/internal/storage"
)

const (
	maxRankNameLen   = 64
	maxSettingKeyLen = 64
)

var (
	// ErrInvalidRank возвращается для ранга с пустым или слишком длинным названием либо отрицательной ценой.
	ErrInvalidRank = errors.New("rank name must be 1-64 characters and price must not be negative")
	// ErrInvalidSetting возвращается для пустого или слишком длинного ключа настройки.
	ErrInvalidSetting = errors.New("setting key must be 1-64 characters")
)

// RankQuote объединяет ранг и его цену на текущий момент.
type RankQuote struct {
	Rank  model.Rank
	Quote pricing.Quote
}

// RankInput содержит редактируемые поля ранга.
type RankInput struct {
	Name              string
	Price             decimal.Decimal
	Color             string
	ImageURL          string
	Description       *string
	DiscountPercent   int
	DiscountExpiresAt *time.Time
}

func (in RankInput) validate() error {
	name := strings.TrimSpace(in.Name)
	if name == "" || utf8.RuneCountInString(name) > maxRankNameLen || in.Price.IsNegative() {
		return ErrInvalidRank
	}
	if !pricing.ValidPercent(in.DiscountPercent) {
		return repository.ErrInvalidDiscount
	}
	return nil
}

func (in RankInput) toModel() model.Rank {
	return model.Rank{
		Name:              strings.TrimSpace(in.Name),
		Price:             in.Price.Round(2),
		Color:             in.Color,
		ImageURL:          in.ImageURL,
		Description:       in.Description,
		DiscountPercent:   in.DiscountPercent,
		DiscountExpiresAt: in.DiscountExpiresAt,
	}
}

// ListRanks возвращает каталог рангов с ценами на текущий момент.
func (s *Service) ListRanks(ctx context.Context) ([]RankQuote, error) {
	ranks, err := s.repo.ListRanks(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]RankQuote, 0, len(ranks))
	for _, rk := range ranks {
		out = append(out, RankQuote{Rank: rk, Quote: pricing.QuoteRank(rk, now)})
	}
	return out, nil
}

// GetRank возвращает ранг по названию вместе с ценой.
func (s *Service) GetRank(ctx context.Context, name string) (*RankQuote, error) {
	rk, err := s.repo.GetRankByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return &RankQuote{Rank: *rk, Quote: pricing.QuoteRank(*rk, s.now())}, nil
}

// CreateRank добавляет ранг в каталог.
func (s *Service) CreateRank(ctx context.Context, in RankInput) (*RankQuote, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	rk, err := s.repo.CreateRank(ctx, in.toModel())
	if err != nil {
		return nil, err
	}

	s.logger.Info("rank created", zap.Int64("rank_id", rk.ID), zap.String("name", rk.Name))
	return &RankQuote{Rank: *rk, Quote: pricing.QuoteRank(*rk, s.now())}, nil
}

// UpdateRank изменяет ранг.
func (s *Service) UpdateRank(ctx context.Context, id int64, in RankInput) (*RankQuote, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	m := in.toModel()
	m.ID = id
	rk, err := s.repo.UpdateRank(ctx, m)
	if err != nil {
		return nil, err
	}

	s.logger.Info("rank updated", zap.Int64("rank_id", rk.ID), zap.String("name", rk.Name))
	return &RankQuote{Rank: *rk, Quote: pricing.QuoteRank(*rk, s.now())}, nil
}

// DeleteRank удаляет ранг из каталога.
func (s *Service) DeleteRank(ctx context.Context, id int64) error {
	if err := s.repo.DeleteRank(ctx, id); err != nil {
		return err
	}
	s.logger.Info("rank deleted", zap.Int64("rank_id", id))
	return nil
}

// SetRankImage сохраняет изображение ранга и обновляет ссылку на него.
func (s *Service) SetRankImage(ctx context.Context, id int64, r io.Reader) (*RankQuote, error) {
	if _, err := s.repo.GetRankByID(ctx, id); err != nil {
		return nil, err
	}

	rel, err := s.store.SaveImage(ctx, storage.DirRanks, r)
	if err != nil {
		return nil, err
	}

	rk, err := s.repo.SetRankImage(ctx, id, s.store.URL(rel))
	if err != nil {
		s.logger.Warn("rank image not linked, file left in storage",
			zap.Int64("rank_id", id),
			zap.String("path", rel),
			zap.Error(err),
		)
		return nil, err
	}

	return &RankQuote{Rank: *rk, Quote: pricing.QuoteRank(*rk, s.now())}, nil
}

// ApplyGlobalDiscount применяет одну скидку ко всем рангам. Процент 0 снимает скидки.
func (s *Service) ApplyGlobalDiscount(ctx context.Context, percent int, expiresAt *time.Time) (int64, error) {
	if !pricing.ValidPercent(percent) {
		return 0, repository.ErrInvalidDiscount
	}

	n, err := s.repo.ApplyGlobalDiscount(ctx, percent, expiresAt)
	if err != nil {
		return 0, err
	}

	s.logger.Info("global discount applied", zap.Int("percent", percent), zap.Int64("ranks", n))
	return n, nil
}

// PaymentQR возвращает настройку с адресом QR-кода для оплаты.
func (s *Service) PaymentQR(ctx context.Context) (*model.StoreSetting, error) {
	return s.repo.GetSetting(ctx, model.SettingPaymentQR)
}

// UpsertSetting создаёт или изменяет настройку магазина.
func (s *Service) UpsertSetting(ctx context.Context, key, value string) (*model.StoreSetting, error) {
	key = strings.TrimSpace(key)
	if key == "" || utf8.RuneCountInString(key) > maxSettingKeyLen {
		return nil, ErrInvalidSetting
	}
	return s.repo.UpsertSetting(ctx, key, value)
}
