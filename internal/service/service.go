// Package service реализует бизнес-логику движка жизненного цикла лидов: статусы и контакты,
// конвертацию в проект, поступления, кошелёк и показатели продаж.
package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mmeshcher/leadflow/internal/dangerzone"
	"github.com/mmeshcher/leadflow/internal/model"
	"github.com/mmeshcher/leadflow/internal/notify"
	"github.com/mmeshcher/leadflow/internal/repository"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
// Методы с fn выполняют fn внутри транзакции над заблокированной записью: если fn
// возвращает ошибку, изменения не сохраняются и ошибка возвращается как есть.
type Repository interface {
	Close() error

	CreateLead(ctx context.Context, lead model.Lead) (*model.Lead, error)
	GetLead(ctx context.Context, id int64) (*model.Lead, error)
	UpdateLead(ctx context.Context, id int64, fn func(*model.Lead) error) (*model.Lead, error)
	TransferLead(ctx context.Context, id int64, fn func(*model.Lead) error) (*model.Lead, error)
	ListLeads(ctx context.Context, principalID int64) ([]model.Lead, error)
	CountLeads(ctx context.Context, ownerID int64) (total, converted int, err error)

	GetProfile(ctx context.Context, leadID int64) (*model.LeadProfile, error)
	SaveProfile(ctx context.Context, p model.LeadProfile) (*model.LeadProfile, error)

	ConvertLead(ctx context.Context, leadID int64, fn func(lead *model.Lead, profile *model.LeadProfile) (repository.Conversion, error)) (*repository.Conversion, error)
	GetClient(ctx context.Context, id int64) (*model.Client, error)
	AddClientProject(ctx context.Context, clientID int64, fn func(client model.Client) (repository.Conversion, error)) (*repository.Conversion, error)

	GetProjectLedger(ctx context.Context, projectID int64) (*repository.ProjectLedger, error)
	UpdateProject(ctx context.Context, id int64, fn func(*model.Project) error) (*model.Project, error)
	CreateReceipt(ctx context.Context, projectID int64, fn func(repository.ProjectLedger) (model.PaymentReceipt, error)) (*model.PaymentReceipt, error)
	ReviewReceipt(ctx context.Context, receiptID int64, fn func(r *model.PaymentReceipt, project model.Project, w *model.Wallet) error) (*model.PaymentReceipt, error)
	CreateInstallment(ctx context.Context, in model.Installment) (*model.Installment, error)
	UpdateInstallment(ctx context.Context, id int64, fn func(in *model.Installment, project model.Project) error) (*model.Installment, error)

	GetWallet(ctx context.Context, ownerID int64) (*model.Wallet, error)
	CreateWithdrawal(ctx context.Context, ownerID int64, fn func(w model.Wallet) (model.WithdrawalRequest, error)) (*model.WithdrawalRequest, error)
	ReviewWithdrawal(ctx context.Context, requestID int64, fn func(w *model.Wallet, req *model.WithdrawalRequest) error) (*model.WithdrawalRequest, error)
	ListWithdrawals(ctx context.Context, ownerID int64) ([]model.WithdrawalRequest, error)

	CreateSalesRep(ctx context.Context, rep model.SalesRep) (*model.SalesRep, error)
	GetSalesRep(ctx context.Context, id int64) (*model.SalesRep, error)
	ListTeamMembers(ctx context.Context, teamLeadID int64) ([]model.SalesRep, error)
	CreateTarget(ctx context.Context, t model.Target) (*model.Target, error)
	ListTargets(ctx context.Context, ownerID int64) ([]model.Target, error)
	MonthlySales(ctx context.Context, ownerID int64, from, to time.Time) (int64, error)
	LastConversionAt(ctx context.Context, ownerID int64) (*time.Time, error)
}

// Notifier доставляет события. Ошибка доставки не влияет на результат операции.
type Notifier interface {
	Notify(ctx context.Context, ev notify.Event) error
}

// Options содержит необязательные зависимости сервиса. Нулевые поля заменяются значениями по умолчанию.
type Options struct {
	Notifier          Notifier
	Cache             dangerzone.Store
	Logger            *zap.Logger
	CommissionPercent float64
	Now               func() time.Time
}

const notifyTimeout = 5 * time.Second

// Service содержит бизнес-логику движка.
type Service struct {
	repo              Repository
	notifier          Notifier
	cache             dangerzone.Store
	log               *zap.Logger
	commissionPercent float64
	now               func() time.Time

	dangerGroup singleflight.Group
	pending     sync.WaitGroup
}

// NewService создаёт сервис поверх репозитория.
func NewService(repo Repository, opts Options) *Service {
	s := &Service{
		repo:              repo,
		notifier:          opts.Notifier,
		cache:             opts.Cache,
		log:               opts.Logger,
		commissionPercent: opts.CommissionPercent,
		now:               opts.Now,
	}
	if s.notifier == nil {
		s.notifier = notify.Discard{}
	}
	if s.cache == nil {
		s.cache = dangerzone.NewMemoryStore()
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Close дожидается отправки уведомлений и закрывает ресурсы сервиса.
func (s *Service) Close() error {
	s.pending.Wait()
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// publish отправляет событие в фоне. Отмена контекста запроса доставку не прерывает.
func (s *Service) publish(ctx context.Context, ev notify.Event) {
	ev.OccurredAt = s.now()
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()

		if err := s.notifier.Notify(ctx, ev); err != nil {
			s.log.Warn("notification dropped",
				zap.String("event", string(ev.Type)),
				zap.Int64("entityID", ev.EntityID),
				zap.Error(err),
			)
		}
	}()
}

func canSeeLead(p model.Principal, l *model.Lead) bool {
	if ownsLead(p, l) {
		return true
	}
	if l.ChannelPartnerID != nil && *l.ChannelPartnerID == p.ID {
		return true
	}
	for _, sh := range l.SharedFromSales {
		if sh.CounterpartyID == p.ID {
			return true
		}
	}
	for _, sh := range l.SharedWithSales {
		if sh.CounterpartyID == p.ID {
			return true
		}
	}
	return false
}

func ownsLead(p model.Principal, l *model.Lead) bool {
	return p.IsAdmin() || l.OwnerID == p.ID
}

func ownsProject(p model.Principal, pr model.Project) bool {
	return p.IsAdmin() || pr.OwnerID == p.ID
}
