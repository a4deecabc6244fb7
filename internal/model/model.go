// Package model содержит доменные сущности магазина рангов ChampaMC.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus описывает статус обработки заказа.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusRejected  OrderStatus = "rejected"
)

// Valid сообщает, является ли статус одним из допустимых значений.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusRejected:
		return true
	}
	return false
}

// Platform описывает игровую платформу покупателя.
type Platform string

const (
	PlatformJava    Platform = "java"
	PlatformBedrock Platform = "bedrock"
)

// Valid сообщает, является ли платформа одной из поддерживаемых.
func (p Platform) Valid() bool {
	return p == PlatformJava || p == PlatformBedrock
}

// Order описывает заказ ранга, оформленный в витрине.
type Order struct {
	ID          uuid.UUID
	Username    string
	Platform    Platform
	RankName    string
	Price       decimal.Decimal
	ProofPath   string
	Status      OrderStatus
	Notes       *string
	CreatedAt   time.Time
	ProcessedAt *time.Time
	ProcessedBy *int64
}

// Rank описывает покупаемый ранг и его скидку.
type Rank struct {
	ID                int64
	Name              string
	Price             decimal.Decimal
	Color             string
	ImageURL          string
	Description       *string
	DiscountPercent   int
	DiscountExpiresAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// StoreSetting хранит одну пару ключ/значение настроек магазина.
type StoreSetting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// SettingPaymentQR задаёт ключ настройки с адресом изображения QR-кода для оплаты.
const SettingPaymentQR = "payment_qr_url"

// Staff представляет учётную запись сотрудника из списка допуска.
type Staff struct {
	ID           int64
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// OrderFilter задаёт параметры выборки заказов в админ-панели.
type OrderFilter struct {
	Status OrderStatus
	Query  string
	Limit  int
	Offset int
}

// OrderStats содержит количество заказов по статусам.
type OrderStats struct {
	Pending   int64 `json:"pending"`
	Completed int64 `json:"completed"`
	Rejected  int64 `json:"rejected"`
}
