// Package service реализует бизнес-логику магазина рангов ChampaMC.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Hiroshi-99/ChampaMC/internal/metrics"
	"github.com/Hiroshi-99/ChampaMC/internal/model"
	"github.com/Hiroshi-99/ChampaMC/internal/notify"
	"github.com/Hiroshi-99/ChampaMC/internal/repository"
)

var (
	// ErrInvalidCredentials возвращается при неверной почте или пароле.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden возвращается, если учётная запись отсутствует в списке допуска.
	ErrForbidden = errors.New("account is not on the staff allow-list")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Ping(ctx context.Context) error
	Close() error

	ListRanks(ctx context.Context) ([]model.Rank, error)
	GetRankByName(ctx context.Context, name string) (*model.Rank, error)
	GetRankByID(ctx context.Context, id int64) (*model.Rank, error)
	CreateRank(ctx context.Context, rk model.Rank) (*model.Rank, error)
	UpdateRank(ctx context.Context, rk model.Rank) (*model.Rank, error)
	SetRankImage(ctx context.Context, id int64, imageURL string) (*model.Rank, error)
	DeleteRank(ctx context.Context, id int64) error
	ApplyGlobalDiscount(ctx context.Context, percent int, expiresAt *time.Time) (int64, error)

	CreateOrder(ctx context.Context, o model.Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error)
	ListOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, notes *string, staffID int64) (*model.Order, error)
	OrderStats(ctx context.Context) (model.OrderStats, error)

	GetSetting(ctx context.Context, key string) (*model.StoreSetting, error)
	UpsertSetting(ctx context.Context, key, value string) (*model.StoreSetting, error)

	CreateStaff(ctx context.Context, email string, passwordHash []byte) (int64, error)
	GetStaffByEmail(ctx context.Context, email string) (*model.Staff, error)
	GetStaffByID(ctx context.Context, id int64) (*model.Staff, error)
}

// ImageStore сохраняет загруженные изображения.
type ImageStore interface {
	SaveImage(ctx context.Context, dir string, r io.Reader) (string, error)
	URL(rel string) string
}

// Notifier доставляет уведомления о заказах.
type Notifier interface {
	Send(ctx context.Context, msg notify.Message) notify.Result
}

// Option настраивает Service.
type Option func(*Service)

// WithMetrics подключает метрики Prometheus.
func WithMetrics(m *metrics.StoreMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithDemoFallback включает демо-режим: при сбое хранилища заказ возвращается без сохранения.
func WithDemoFallback(enabled bool) Option {
	return func(s *Service) { s.demoFallback = enabled }
}

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service содержит бизнес-логику витрины и админ-панели.
type Service struct {
	repo     Repository
	store    ImageStore
	notifier Notifier
	metrics  *metrics.StoreMetrics
	logger   *zap.Logger

	demoFallback bool
	now          func() time.Time

	// фоновые отправки уведомлений
	wg sync.WaitGroup
}

// NewService создаёт сервис с указанным репозиторием, хранилищем файлов и диспетчером уведомлений.
func NewService(repo Repository, store ImageStore, notifier Notifier, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		repo:     repo,
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping проверяет доступность базы данных.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Close дожидается отправки фоновых уведомлений и закрывает ресурсы сервиса.
func (s *Service) Close() error {
	s.wg.Wait()
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Login проверяет почту и пароль сотрудника и возвращает его идентификатор.
func (s *Service) Login(ctx context.Context, email, password string) (int64, error) {
	st, err := s.repo.GetStaffByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrStaffNotFound) {
			return 0, ErrInvalidCredentials
		}
		return 0, err
	}

	if err := bcrypt.CompareHashAndPassword(st.PasswordHash, []byte(password)); err != nil {
		return 0, ErrInvalidCredentials
	}

	return st.ID, nil
}

// AuthorizeStaff проверяет, что сотрудник по-прежнему находится в списке допуска.
func (s *Service) AuthorizeStaff(ctx context.Context, staffID int64) (*model.Staff, error) {
	st, err := s.repo.GetStaffByID(ctx, staffID)
	if err != nil {
		if errors.Is(err, repository.ErrStaffNotFound) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	return st, nil
}

// EnsureAdmin добавляет начальную учётную запись сотрудника, если её ещё нет.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	if _, err := s.repo.GetStaffByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrStaffNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if _, err := s.repo.CreateStaff(ctx, email, hash); err != nil && !errors.Is(err, repository.ErrStaffExists) {
		return err
	}

	s.logger.Info("staff account seeded", zap.String("email", email))
	return nil
}

// dispatch отправляет уведомление в фоне, не привязываясь к отмене контекста запроса.
func (s *Service) dispatch(ctx context.Context, event string, msg notify.Message) {
	if s.notifier == nil {
		return
	}

	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		res := s.notifier.Send(bg, msg)

		result := metrics.NotificationFailed
		switch {
		case res.OK:
			result = metrics.NotificationOK
		case res.Reason == notify.ReasonDisabled:
			result = metrics.NotificationDisabled
		}
		s.metrics.ObserveNotification(event, result, res.Attempts)

		if !res.OK {
			s.logger.Debug("notification not delivered",
				zap.String("event", event),
				zap.String("reason", res.Reason),
			)
		}
	}()
}
