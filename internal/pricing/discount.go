// Package pricing вычисляет итоговую цену ранга с учётом скидки.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Hiroshi-99/ChampaMC/internal/model"
)

const (
	// MinDiscountPercent и MaxDiscountPercent ограничивают допустимый размер скидки.
	MinDiscountPercent = 0
	MaxDiscountPercent = 100
)

var hundred = decimal.NewFromInt(100)

// EffectivePrice возвращает цену со скидкой, округлённую до двух знаков.
// Процент за пределами [0, 100] приводится к ближайшей границе.
func EffectivePrice(base decimal.Decimal, pct int) decimal.Decimal {
	pct = clampPercent(pct)
	return base.Mul(decimal.NewFromInt(int64(100 - pct))).Div(hundred).Round(2)
}

// IsDiscountActive сообщает, действует ли скидка в момент now.
func IsDiscountActive(pct int, expiresAt *time.Time, now time.Time) bool {
	if pct <= 0 {
		return false
	}
	return expiresAt == nil || expiresAt.After(now)
}

// Quote описывает цену ранга для витрины.
type Quote struct {
	BasePrice       decimal.Decimal
	EffectivePrice  decimal.Decimal
	DiscountPercent int
	DiscountActive  bool
	ExpiresAt       *time.Time
}

// QuoteRank рассчитывает цену ранга на момент now.
func QuoteRank(r model.Rank, now time.Time) Quote {
	q := Quote{
		BasePrice:       r.Price.Round(2),
		EffectivePrice:  r.Price.Round(2),
		DiscountPercent: r.DiscountPercent,
		ExpiresAt:       r.DiscountExpiresAt,
	}

	if IsDiscountActive(r.DiscountPercent, r.DiscountExpiresAt, now) {
		q.DiscountActive = true
		q.EffectivePrice = EffectivePrice(r.Price, r.DiscountPercent)
	}

	return q
}

// ValidPercent проверяет, что процент скидки лежит в диапазоне [0, 100].
func ValidPercent(pct int) bool {
	return pct >= MinDiscountPercent && pct <= MaxDiscountPercent
}

func clampPercent(pct int) int {
	if pct < MinDiscountPercent {
		return MinDiscountPercent
	}
	if pct > MaxDiscountPercent {
		return MaxDiscountPercent
	}
	return pct
}
