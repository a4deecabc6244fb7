package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Hiroshi-99/ChampaMC/internal/model"
	"github.com/Hiroshi-99/ChampaMC/internal/service"
)

type rankResponse struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	Price             string     `json:"price"`
	EffectivePrice    string     `json:"effective_price"`
	DiscountPercent   int        `json:"discount_percent"`
	DiscountActive    bool       `json:"is_discount_active"`
	DiscountExpiresAt *time.Time `json:"discount_expires_at,omitempty"`
	Color             string     `json:"color"`
	ImageURL          string     `json:"image_url"`
	Description       *string    `json:"description,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func newRankResponse(rq service.RankQuote) rankResponse {
	return rankResponse{
		ID:                rq.Rank.ID,
		Name:              rq.Rank.Name,
		Price:             rq.Quote.BasePrice.StringFixed(2),
		EffectivePrice:    rq.Quote.EffectivePrice.StringFixed(2),
		DiscountPercent:   rq.Quote.DiscountPercent,
		DiscountActive:    rq.Quote.DiscountActive,
		DiscountExpiresAt: rq.Quote.ExpiresAt,
		Color:             rq.Rank.Color,
		ImageURL:          rq.Rank.ImageURL,
		Description:       rq.Rank.Description,
		UpdatedAt:         rq.Rank.UpdatedAt,
	}
}

type orderResponse struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Platform    string     `json:"platform"`
	RankName    string     `json:"rank_name"`
	Price       string     `json:"price"`
	ProofURL    string     `json:"payment_proof_url"`
	Status      string     `json:"status"`
	Notes       *string    `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	ProcessedBy *int64     `json:"processed_by,omitempty"`

	BasePrice       string `json:"base_price,omitempty"`
	DiscountPercent int    `json:"discount_percent,omitempty"`
	DiscountActive  bool   `json:"is_discount_active,omitempty"`
	Demo            bool   `json:"demo,omitempty"`
}

func newOrderResponse(o model.Order, proofURL string) orderResponse {
	return orderResponse{
		ID:          o.ID.String(),
		Username:    o.Username,
		Platform:    string(o.Platform),
		RankName:    o.RankName,
		Price:       o.Price.StringFixed(2),
		ProofURL:    proofURL,
		Status:      string(o.Status),
		Notes:       o.Notes,
		CreatedAt:   o.CreatedAt,
		ProcessedAt: o.ProcessedAt,
		ProcessedBy: o.ProcessedBy,
	}
}

type settingResponse struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newSettingResponse(s model.StoreSetting) settingResponse {
	return settingResponse{Key: s.Key, Value: s.Value, UpdatedAt: s.UpdatedAt}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type orderStatusRequest struct {
	Status string  `json:"status" validate:"required,oneof=pending completed rejected"`
	Notes  *string `json:"notes" validate:"omitempty,max=1000"`
}

type rankRequest struct {
	Name              string          `json:"name" validate:"required,max=64"`
	Price             decimal.Decimal `json:"price"`
	Color             string          `json:"color" validate:"max=256"`
	ImageURL          string          `json:"image_url" validate:"omitempty,url"`
	Description       *string         `json:"description" validate:"omitempty,max=2000"`
	DiscountPercent   int             `json:"discount_percent"`
	DiscountExpiresAt *time.Time      `json:"discount_expires_at"`
}

func (r rankRequest) toInput() service.RankInput {
	return service.RankInput{
		Name:              r.Name,
		Price:             r.Price,
		Color:             r.Color,
		ImageURL:          r.ImageURL,
		Description:       r.Description,
		DiscountPercent:   r.DiscountPercent,
		DiscountExpiresAt: r.DiscountExpiresAt,
	}
}

type discountRequest struct {
	Percent   *int       `json:"percent" validate:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type discountResponse struct {
	Percent   int        `json:"percent"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Ranks     int64      `json:"ranks_updated"`
}

type settingRequest struct {
	Value string `json:"value" validate:"max=2048"`
}
