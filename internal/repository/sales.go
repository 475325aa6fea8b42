package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/leadflow/internal/model"
)

const salesRepColumns = `id, name, team_lead_id, joined_at`

func scanSalesRep(row pgx.Row) (*model.SalesRep, error) {
	var rep model.SalesRep
	if err := row.Scan(&rep.ID, &rep.Name, &rep.TeamLeadID, &rep.JoinedAt); err != nil {
		return nil, err
	}
	return &rep, nil
}

const targetColumns = `id, owner_id, target_number, amount, deadline, reward, created_at`

func scanTarget(row pgx.Row) (*model.Target, error) {
	var t model.Target
	if err := row.Scan(&t.ID, &t.OwnerID, &t.TargetNumber, &t.Amount, &t.Deadline, &t.Reward, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateSalesRep сохраняет торгового представителя.
func (r *PostgresRepository) CreateSalesRep(ctx context.Context, rep model.SalesRep) (*model.SalesRep, error) {
	err := r.read(ctx, "create sales rep", func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO sales_reps (name, team_lead_id, joined_at) VALUES ($1, $2, $3) RETURNING id`,
			rep.Name, rep.TeamLeadID, rep.JoinedAt,
		).Scan(&rep.ID)
	})
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

// GetSalesRep возвращает торгового представителя.
func (r *PostgresRepository) GetSalesRep(ctx context.Context, id int64) (*model.SalesRep, error) {
	var rep *model.SalesRep
	err := r.read(ctx, "get sales rep", func() error {
		var err error
		rep, err = scanSalesRep(r.pool.QueryRow(ctx, `SELECT `+salesRepColumns+` FROM sales_reps WHERE id = $1`, id))
		return notFound(err, "sales rep", id)
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// ListTeamMembers возвращает участников команды без руководителя.
func (r *PostgresRepository) ListTeamMembers(ctx context.Context, teamLeadID int64) ([]model.SalesRep, error) {
	var res []model.SalesRep
	err := r.read(ctx, "list team members", func() error {
		res = res[:0]
		rows, err := r.pool.Query(ctx,
			`SELECT `+salesRepColumns+` FROM sales_reps WHERE team_lead_id = $1 AND id <> $1 ORDER BY id`,
			teamLeadID,
		)
		if err != nil {
			return fmt.Errorf("select team members: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			rep, err := scanSalesRep(rows)
			if err != nil {
				return fmt.Errorf("scan sales rep: %w", err)
			}
			res = append(res, *rep)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CreateTarget сохраняет план со следующим порядковым номером представителя.
// Номер выдаётся под транзакционной advisory-блокировкой по владельцу.
func (r *PostgresRepository) CreateTarget(ctx context.Context, t model.Target) (*model.Target, error) {
	err := r.inTx(ctx, "create target", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, t.OwnerID); err != nil {
			return fmt.Errorf("lock targets: %w", err)
		}
		err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(target_number), 0) + 1 FROM targets WHERE owner_id = $1`,
			t.OwnerID,
		).Scan(&t.TargetNumber)
		if err != nil {
			return fmt.Errorf("next target number: %w", err)
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO targets (owner_id, target_number, amount, deadline, reward, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			t.OwnerID, t.TargetNumber, t.Amount, t.Deadline, t.Reward, t.CreatedAt,
		).Scan(&t.ID)
		if err != nil {
			return fmt.Errorf("insert target: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTargets возвращает планы представителя по порядку номеров.
func (r *PostgresRepository) ListTargets(ctx context.Context, ownerID int64) ([]model.Target, error) {
	var res []model.Target
	err := r.read(ctx, "list targets", func() error {
		res = res[:0]
		rows, err := r.pool.Query(ctx,
			`SELECT `+targetColumns+` FROM targets WHERE owner_id = $1 ORDER BY target_number`,
			ownerID,
		)
		if err != nil {
			return fmt.Errorf("select targets: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			t, err := scanTarget(rows)
			if err != nil {
				return fmt.Errorf("scan target: %w", err)
			}
			res = append(res, *t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// MonthlySales суммирует стоимость проектов владельца, созданных в [from, to).
// Отменённые проекты не учитываются.
func (r *PostgresRepository) MonthlySales(ctx context.Context, ownerID int64, from, to time.Time) (int64, error) {
	var total int64
	err := r.read(ctx, "monthly sales", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT COALESCE(SUM(total_cost), 0)::bigint
			 FROM projects
			 WHERE owner_id = $1 AND created_at >= $2 AND created_at < $3 AND status <> $4`,
			ownerID, from, to, string(model.ProjectCancelled),
		).Scan(&total)
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// LastConversionAt возвращает время последней конвертации владельца или nil, если их не было.
func (r *PostgresRepository) LastConversionAt(ctx context.Context, ownerID int64) (*time.Time, error) {
	var last *time.Time
	err := r.read(ctx, "last conversion", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT MAX(created_at) FROM projects WHERE owner_id = $1`,
			ownerID,
		).Scan(&last)
	})
	if err != nil {
		return nil, err
	}
	return last, nil
}
