package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/leadflow/internal/apperr"
	"github.com/mmeshcher/leadflow/internal/model"
)

const leadColumns = `id, owner_id, channel_partner_id, name, phone, category_id, status, lost_reason,
	follow_ups, notes, shared_from_sales, shared_with_sales, transfers, version, created_at, updated_at`

func scanLead(row pgx.Row) (*model.Lead, error) {
	var (
		l      model.Lead
		status string
	)
	err := row.Scan(
		&l.ID, &l.OwnerID, &l.ChannelPartnerID, &l.Name, &l.Phone, &l.CategoryID, &status, &l.LostReason,
		&l.FollowUps, &l.Notes, &l.SharedFromSales, &l.SharedWithSales, &l.Transfers,
		&l.Version, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Status = model.LeadStatus(status)
	return &l, nil
}

// CreateLead сохраняет новый лид.
func (r *PostgresRepository) CreateLead(ctx context.Context, lead model.Lead) (*model.Lead, error) {
	err := r.read(ctx, "create lead", func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO leads (owner_id, channel_partner_id, name, phone, category_id, status, lost_reason,
				follow_ups, notes, shared_from_sales, shared_with_sales, transfers, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			 RETURNING id, version`,
			lead.OwnerID, lead.ChannelPartnerID, lead.Name, lead.Phone, lead.CategoryID,
			string(lead.Status), lead.LostReason,
			orEmpty(lead.FollowUps), orEmpty(lead.Notes),
			orEmpty(lead.SharedFromSales), orEmpty(lead.SharedWithSales), orEmpty(lead.Transfers),
			lead.CreatedAt, lead.UpdatedAt,
		).Scan(&lead.ID, &lead.Version)
	})
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// GetLead возвращает лид по идентификатору.
func (r *PostgresRepository) GetLead(ctx context.Context, id int64) (*model.Lead, error) {
	var l *model.Lead
	err := r.read(ctx, "get lead", func() error {
		var err error
		l, err = scanLead(r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
		return notFound(err, "lead", id)
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

func lockLead(ctx context.Context, tx pgx.Tx, id int64) (*model.Lead, error) {
	l, err := scanLead(tx.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "lead", id)
	}
	return l, nil
}

func saveLead(ctx context.Context, q querier, l *model.Lead) error {
	err := q.QueryRow(ctx,
		`UPDATE leads
		 SET owner_id = $2, channel_partner_id = $3, name = $4, phone = $5, category_id = $6,
		     status = $7, lost_reason = $8, follow_ups = $9, notes = $10,
		     shared_from_sales = $11, shared_with_sales = $12, transfers = $13,
		     updated_at = $14, version = version + 1
		 WHERE id = $1
		 RETURNING version`,
		l.ID, l.OwnerID, l.ChannelPartnerID, l.Name, l.Phone, l.CategoryID,
		string(l.Status), l.LostReason, orEmpty(l.FollowUps), orEmpty(l.Notes),
		orEmpty(l.SharedFromSales), orEmpty(l.SharedWithSales), orEmpty(l.Transfers),
		l.UpdatedAt,
	).Scan(&l.Version)
	if err != nil {
		return fmt.Errorf("update lead: %w", err)
	}
	return nil
}

// UpdateLead блокирует строку лида, применяет fn и сохраняет результат.
func (r *PostgresRepository) UpdateLead(ctx context.Context, id int64, fn func(*model.Lead) error) (*model.Lead, error) {
	var res *model.Lead
	err := r.inTx(ctx, "update lead", func(tx pgx.Tx) error {
		l, err := lockLead(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(l); err != nil {
			return err
		}
		if err := saveLead(ctx, tx, l); err != nil {
			return err
		}
		res = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// TransferLead блокирует лид, применяет fn и переносит на нового владельца клиента,
// полученного из лида, вместе со всеми его проектами. Всё выполняется в одной транзакции.
func (r *PostgresRepository) TransferLead(ctx context.Context, id int64, fn func(*model.Lead) error) (*model.Lead, error) {
	var res *model.Lead
	err := r.inTx(ctx, "transfer lead", func(tx pgx.Tx) error {
		l, err := lockLead(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(l); err != nil {
			return err
		}
		if err := saveLead(ctx, tx, l); err != nil {
			return err
		}

		var clientID int64
		err = tx.QueryRow(ctx, `SELECT id FROM clients WHERE lead_id = $1 FOR UPDATE`, id).Scan(&clientID)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			res = l
			return nil
		case err != nil:
			return fmt.Errorf("lock client: %w", err)
		}

		if _, err := tx.Exec(ctx, `UPDATE clients SET owner_id = $2 WHERE id = $1`, clientID, l.OwnerID); err != nil {
			return fmt.Errorf("transfer client: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE projects SET owner_id = $2, updated_at = $3, version = version + 1 WHERE client_id = $1`,
			clientID, l.OwnerID, l.UpdatedAt,
		); err != nil {
			return fmt.Errorf("transfer projects: %w", err)
		}
		res = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ListLeads возвращает лиды, которыми владеет участник или которые ему открыты.
func (r *PostgresRepository) ListLeads(ctx context.Context, principalID int64) ([]model.Lead, error) {
	var leads []model.Lead
	err := r.read(ctx, "list leads", func() error {
		leads = leads[:0]
		rows, err := r.pool.Query(ctx,
			`SELECT `+leadColumns+`
			 FROM leads
			 WHERE owner_id = $1
			    OR channel_partner_id = $1
			    OR shared_from_sales @> jsonb_build_array(jsonb_build_object('counterparty_id', $1::bigint))
			    OR shared_with_sales @> jsonb_build_array(jsonb_build_object('counterparty_id', $1::bigint))
			 ORDER BY updated_at DESC`,
			principalID,
		)
		if err != nil {
			return fmt.Errorf("select leads: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			l, err := scanLead(rows)
			if err != nil {
				return fmt.Errorf("scan lead: %w", err)
			}
			leads = append(leads, *l)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return leads, nil
}

// CountLeads возвращает общее число лидов владельца и число конвертированных.
func (r *PostgresRepository) CountLeads(ctx context.Context, ownerID int64) (int, int, error) {
	var total, converted int
	err := r.read(ctx, "count leads", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT COUNT(*), COUNT(*) FILTER (WHERE status = $2)
			 FROM leads
			 WHERE owner_id = $1`,
			ownerID, string(model.StatusConverted),
		).Scan(&total, &converted)
	})
	if err != nil {
		return 0, 0, err
	}
	return total, converted, nil
}

const profileColumns = `lead_id, name, business_name, email, estimated_cost, quotation_sent, demo_sent,
	description, project_type, created_at, updated_at`

func scanProfile(row pgx.Row) (*model.LeadProfile, error) {
	var p model.LeadProfile
	err := row.Scan(
		&p.LeadID, &p.Name, &p.BusinessName, &p.Email, &p.EstimatedCost, &p.QuotationSent, &p.DemoSent,
		&p.Description, &p.ProjectType, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// getProfile возвращает nil без ошибки, если профиля нет.
func getProfile(ctx context.Context, q querier, leadID int64) (*model.LeadProfile, error) {
	p, err := scanProfile(q.QueryRow(ctx, `SELECT `+profileColumns+` FROM lead_profiles WHERE lead_id = $1`, leadID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select profile: %w", err)
	}
	return p, nil
}

// GetProfile возвращает профиль лида.
func (r *PostgresRepository) GetProfile(ctx context.Context, leadID int64) (*model.LeadProfile, error) {
	var p *model.LeadProfile
	err := r.read(ctx, "get profile", func() error {
		var err error
		p, err = getProfile(ctx, r.pool, leadID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.NotFound("profile of lead", leadID)
	}
	return p, nil
}

// SaveProfile создаёт профиль или обновляет его на месте. Дата создания не меняется.
func (r *PostgresRepository) SaveProfile(ctx context.Context, p model.LeadProfile) (*model.LeadProfile, error) {
	var res *model.LeadProfile
	err := r.read(ctx, "save profile", func() error {
		var err error
		res, err = scanProfile(r.pool.QueryRow(ctx,
			`INSERT INTO lead_profiles (lead_id, name, business_name, email, estimated_cost, quotation_sent,
				demo_sent, description, project_type, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 ON CONFLICT (lead_id) DO UPDATE
			 SET name = EXCLUDED.name, business_name = EXCLUDED.business_name, email = EXCLUDED.email,
			     estimated_cost = EXCLUDED.estimated_cost, quotation_sent = EXCLUDED.quotation_sent,
			     demo_sent = EXCLUDED.demo_sent, description = EXCLUDED.description,
			     project_type = EXCLUDED.project_type, updated_at = EXCLUDED.updated_at
			 RETURNING `+profileColumns,
			p.LeadID, p.Name, p.BusinessName, p.Email, p.EstimatedCost, p.QuotationSent,
			p.DemoSent, p.Description, p.ProjectType, p.CreatedAt, p.UpdatedAt,
		))
		return notFound(err, "lead", p.LeadID)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
