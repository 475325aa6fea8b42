package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/leadflow/internal/apperr"
	"github.com/mmeshcher/leadflow/internal/dangerzone"
	"github.com/mmeshcher/leadflow/internal/model"
	"github.com/mmeshcher/leadflow/internal/target"
	"github.com/mmeshcher/leadflow/internal/validation"
)

// SalesRepInput содержит данные для регистрации торгового представителя.
type SalesRepInput struct {
	Name       string `json:"name" validate:"required"`
	TeamLeadID *int64 `json:"team_lead_id,omitempty" validate:"omitempty,gt=0"`
	JoinedAt   string `json:"joined_at" validate:"omitempty,date"`
}

// TargetInput содержит параметры нового плана продаж.
type TargetInput struct {
	Amount   int64  `json:"amount" validate:"gt=0"`
	Deadline string `json:"deadline" validate:"required,date"`
	Reward   string `json:"reward"`
}

// Dashboard содержит сводку торгового представителя.
type Dashboard struct {
	RepID          int64                 `json:"rep_id"`
	MonthlySales   int64                 `json:"monthly_sales"`
	CurrentTarget  *model.TargetProgress `json:"current_target,omitempty"`
	TotalLeads     int                   `json:"total_leads"`
	ConvertedLeads int                   `json:"converted_leads"`
	ConversionRate float64               `json:"conversion_rate"`
	DangerZone     dangerzone.Entry      `json:"danger_zone"`
	DangerTier     dangerzone.Tier       `json:"danger_tier"`
}

// CreateSalesRep регистрирует торгового представителя.
func (s *Service) CreateSalesRep(ctx context.Context, in SalesRepInput) (*model.SalesRep, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	joined := s.now()
	if in.JoinedAt != "" {
		d, err := time.Parse(validation.DateLayout, in.JoinedAt)
		if err != nil {
			return nil, apperr.Validation("joined_at must be a date in YYYY-MM-DD format")
		}
		joined = d
	}
	if in.TeamLeadID != nil {
		if _, err := s.repo.GetSalesRep(ctx, *in.TeamLeadID); err != nil {
			return nil, err
		}
	}

	return s.repo.CreateSalesRep(ctx, model.SalesRep{
		Name:       strings.TrimSpace(in.Name),
		TeamLeadID: in.TeamLeadID,
		JoinedAt:   joined,
	})
}

// CreateTarget добавляет план представителю. Номер плана назначает хранилище.
func (s *Service) CreateTarget(ctx context.Context, repID int64, in TargetInput) (*model.Target, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	deadline, err := time.Parse(validation.DateLayout, in.Deadline)
	if err != nil {
		return nil, apperr.Validation("deadline must be a date in YYYY-MM-DD format")
	}
	if _, err := s.repo.GetSalesRep(ctx, repID); err != nil {
		return nil, err
	}

	// План действует до конца дня дедлайна.
	deadline = deadline.Add(24*time.Hour - time.Nanosecond)

	return s.repo.CreateTarget(ctx, model.Target{
		OwnerID:   repID,
		Amount:    in.Amount,
		Deadline:  deadline,
		Reward:    strings.TrimSpace(in.Reward),
		CreatedAt: s.now(),
	})
}

func (s *Service) monthlySales(ctx context.Context, repID int64, now time.Time) (int64, error) {
	from, to := target.MonthBounds(now)
	return s.repo.MonthlySales(ctx, repID, from, to)
}

// ListTargets возвращает все планы представителя с прогрессом на текущий месяц.
func (s *Service) ListTargets(ctx context.Context, repID int64) ([]model.TargetProgress, error) {
	now := s.now()
	targets, err := s.repo.ListTargets(ctx, repID)
	if err != nil {
		return nil, err
	}
	sales, err := s.monthlySales(ctx, repID, now)
	if err != nil {
		return nil, err
	}

	res := make([]model.TargetProgress, 0, len(targets))
	for _, t := range targets {
		res = append(res, target.Evaluate(t, sales, now))
	}
	return res, nil
}

// CurrentTarget возвращает план, показываемый по умолчанию.
func (s *Service) CurrentTarget(ctx context.Context, repID int64) (*model.TargetProgress, error) {
	now := s.now()
	sales, err := s.monthlySales(ctx, repID, now)
	if err != nil {
		return nil, err
	}
	tp, err := s.currentTarget(ctx, repID, sales, now)
	if err != nil {
		return nil, err
	}
	if tp == nil {
		return nil, apperr.NotFound("target for rep", repID)
	}
	return tp, nil
}

func (s *Service) currentTarget(ctx context.Context, repID, sales int64, now time.Time) (*model.TargetProgress, error) {
	targets, err := s.repo.ListTargets(ctx, repID)
	if err != nil {
		return nil, err
	}
	t, ok := target.SelectActive(targets, sales, now)
	if !ok {
		return nil, nil
	}
	tp := target.Evaluate(t, sales, now)
	return &tp, nil
}

// DangerZone определяет, находится ли представитель в зоне риска. Ошибок не возвращает:
// при недоступности источника результат оптимистичный.
func (s *Service) DangerZone(ctx context.Context, repID int64) dangerzone.Result {
	now := s.now()

	cached, err := s.cache.Get(ctx, repID)
	if err != nil {
		s.log.Warn("danger zone cache read failed", zap.Int64("repID", repID), zap.Error(err))
		cached = nil
	}
	if dangerzone.StateOf(cached, now) == dangerzone.Fresh {
		return dangerzone.Resolve(cached, dangerzone.Source{}, now)
	}

	v, _, _ := s.dangerGroup.Do(strconv.FormatInt(repID, 10), func() (any, error) {
		res := dangerzone.Resolve(cached, s.dangerSource(ctx, repID), now)
		if res.Computed {
			if err := s.cache.Put(ctx, repID, res.Entry); err != nil {
				s.log.Warn("danger zone cache write failed", zap.Int64("repID", repID), zap.Error(err))
			}
		}
		return res, nil
	})
	return v.(dangerzone.Result)
}

func (s *Service) dangerSource(ctx context.Context, repID int64) dangerzone.Source {
	last, err := s.repo.LastConversionAt(ctx, repID)
	if err != nil {
		s.log.Warn("last conversion lookup failed", zap.Int64("repID", repID), zap.Error(err))
		return dangerzone.Source{}
	}

	src := dangerzone.Source{Available: true, LastConversion: last}
	if last != nil {
		return src
	}

	rep, err := s.repo.GetSalesRep(ctx, repID)
	switch {
	case err == nil:
		joined := rep.JoinedAt
		src.JoinDate = &joined
	case errors.Is(err, apperr.ErrNotFound):
	default:
		s.log.Warn("join date lookup failed", zap.Int64("repID", repID), zap.Error(err))
		return dangerzone.Source{}
	}
	return src
}

// Dashboard собирает сводку представителя.
func (s *Service) Dashboard(ctx context.Context, repID int64) (*Dashboard, error) {
	now := s.now()

	sales, err := s.monthlySales(ctx, repID, now)
	if err != nil {
		return nil, err
	}
	tp, err := s.currentTarget(ctx, repID, sales, now)
	if err != nil {
		return nil, err
	}
	total, converted, err := s.repo.CountLeads(ctx, repID)
	if err != nil {
		return nil, err
	}
	dz := s.DangerZone(ctx, repID)

	return &Dashboard{
		RepID:          repID,
		MonthlySales:   sales,
		CurrentTarget:  tp,
		TotalLeads:     total,
		ConvertedLeads: converted,
		ConversionRate: target.ConversionRate(converted, total),
		DangerZone:     dz.Entry,
		DangerTier:     dz.Tier,
	}, nil
}

// TeamDashboard суммирует продажи участников команды относительно плана руководителя.
func (s *Service) TeamDashboard(ctx context.Context, teamLeadID int64) (*target.TeamRollup, error) {
	now := s.now()

	if _, err := s.repo.GetSalesRep(ctx, teamLeadID); err != nil {
		return nil, err
	}
	members, err := s.repo.ListTeamMembers(ctx, teamLeadID)
	if err != nil {
		return nil, err
	}

	sales := make([]target.MemberSales, len(members))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, m := range members {
		i, m := i, m
		g.Go(func() error {
			v, err := s.monthlySales(gctx, m.ID, now)
			if err != nil {
				return err
			}
			sales[i] = target.MemberSales{RepID: m.ID, MonthlySales: v}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	targets, err := s.repo.ListTargets(ctx, teamLeadID)
	if err != nil {
		return nil, err
	}
	var teamSales int64
	for _, m := range sales {
		teamSales += m.MonthlySales
	}

	var leadTarget *model.Target
	if t, ok := target.SelectActive(targets, teamSales, now); ok {
		leadTarget = &t
	}
	rollup := target.Rollup(teamLeadID, sales, leadTarget, now)
	return &rollup, nil
}
