// Package metrics содержит метрики Prometheus магазина рангов.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метки результата доставки уведомления.
const (
	NotificationOK       = "ok"
	NotificationFailed   = "failed"
	NotificationDisabled = "disabled"
)

// StoreMetrics содержит метрики заказов и уведомлений.
type StoreMetrics struct {
	// Оформленные заказы
	OrdersCreatedTotal *prometheus.CounterVec
	OrdersAmountTotal  *prometheus.CounterVec
	DemoOrdersTotal    prometheus.Counter

	// Действия сотрудников
	OrderStatusChangesTotal *prometheus.CounterVec

	// Уведомления
	NotificationsTotal   *prometheus.CounterVec
	NotificationAttempts *prometheus.HistogramVec
}

// NewStoreMetrics создаёт и регистрирует метрики в reg.
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	f := promauto.With(reg)

	return &StoreMetrics{
		OrdersCreatedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "champamc_orders_created_total",
				Help: "Количество оформленных заказов",
			},
			[]string{"rank", "platform"},
		),
		OrdersAmountTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "champamc_orders_amount_total",
				Help: "Сумма оформленных заказов с учётом скидок",
			},
			[]string{"rank"},
		),
		DemoOrdersTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "champamc_demo_orders_total",
				Help: "Заказы, принятые в демо-режиме без сохранения",
			},
		),
		OrderStatusChangesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "champamc_order_status_changes_total",
				Help: "Смены статуса заказов сотрудниками",
			},
			[]string{"status"},
		),
		NotificationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "champamc_notifications_total",
				Help: "Результаты доставки уведомлений в вебхук",
			},
			[]string{"event", "result"},
		),
		NotificationAttempts: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "champamc_notification_attempts",
				Help:    "Число попыток на одно уведомление",
				Buckets: []float64{1, 2, 3, 4, 5},
			},
			[]string{"event"},
		),
	}
}

// ObserveNotification учитывает итог доставки уведомления.
// result принимает одно из значений NotificationOK, NotificationFailed, NotificationDisabled.
func (m *StoreMetrics) ObserveNotification(event, result string, attempts int) {
	if m == nil {
		return
	}

	m.NotificationsTotal.WithLabelValues(event, result).Inc()
	if attempts > 0 {
		m.NotificationAttempts.WithLabelValues(event).Observe(float64(attempts))
	}
}
