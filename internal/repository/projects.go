package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/leadflow/internal/model"
)

const clientColumns = `id, lead_id, owner_id, name, business_name, email, phone, created_at`

func scanClient(row pgx.Row) (*model.Client, error) {
	var c model.Client
	if err := row.Scan(&c.ID, &c.LeadID, &c.OwnerID, &c.Name, &c.BusinessName, &c.Email, &c.Phone, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

const projectColumns = `id, client_id, owner_id, name, category_id, total_cost, include_gst, finished_days,
	description, status, work_progress, version, created_at, updated_at`

func scanProject(row pgx.Row) (*model.Project, error) {
	var (
		p      model.Project
		status string
	)
	err := row.Scan(
		&p.ID, &p.ClientID, &p.OwnerID, &p.Name, &p.CategoryID, &p.TotalCost, &p.IncludeGST, &p.FinishedDays,
		&p.Description, &status, &p.WorkProgress, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = model.ProjectStatus(status)
	return &p, nil
}

const receiptColumns = `id, project_id, kind, amount, account_id, method, reference_id, notes, status,
	created_by, reviewed_by, created_at, reviewed_at`

func scanReceipt(row pgx.Row) (*model.PaymentReceipt, error) {
	var (
		rc           model.PaymentReceipt
		kind, status string
	)
	err := row.Scan(
		&rc.ID, &rc.ProjectID, &kind, &rc.Amount, &rc.AccountID, &rc.Method, &rc.ReferenceID, &rc.Notes, &status,
		&rc.CreatedBy, &rc.ReviewedBy, &rc.CreatedAt, &rc.ReviewedAt,
	)
	if err != nil {
		return nil, err
	}
	rc.Kind = model.ReceiptKind(kind)
	rc.Status = model.ApprovalStatus(status)
	return &rc, nil
}

const installmentColumns = `id, project_id, amount, due_date, status, paid_at, created_at`

func scanInstallment(row pgx.Row) (*model.Installment, error) {
	var (
		in     model.Installment
		status string
	)
	if err := row.Scan(&in.ID, &in.ProjectID, &in.Amount, &in.DueDate, &status, &in.PaidAt, &in.CreatedAt); err != nil {
		return nil, err
	}
	in.Status = model.InstallmentStatus(status)
	return &in, nil
}

func insertClient(ctx context.Context, q querier, c *model.Client) error {
	err := q.QueryRow(ctx,
		`INSERT INTO clients (lead_id, owner_id, name, business_name, email, phone, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		c.LeadID, c.OwnerID, c.Name, c.BusinessName, c.Email, c.Phone, c.CreatedAt,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert client: %w", err)
	}
	return nil
}

func insertProject(ctx context.Context, q querier, p *model.Project) error {
	err := q.QueryRow(ctx,
		`INSERT INTO projects (client_id, owner_id, name, category_id, total_cost, include_gst, finished_days,
			description, status, work_progress, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id, version`,
		p.ClientID, p.OwnerID, p.Name, p.CategoryID, p.TotalCost, p.IncludeGST, p.FinishedDays,
		p.Description, string(p.Status), p.WorkProgress, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID, &p.Version)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func insertReceipt(ctx context.Context, q querier, rc *model.PaymentReceipt) error {
	err := q.QueryRow(ctx,
		`INSERT INTO payment_receipts (project_id, kind, amount, account_id, method, reference_id, notes, status,
			created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		rc.ProjectID, string(rc.Kind), rc.Amount, rc.AccountID, rc.Method, rc.ReferenceID, rc.Notes,
		string(rc.Status), rc.CreatedBy, rc.CreatedAt,
	).Scan(&rc.ID)
	if err != nil {
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

// saveConversion создаёт проект и аванс под клиентом conv.Client.
func saveConversion(ctx context.Context, tx pgx.Tx, conv *Conversion) error {
	conv.Project.ClientID = conv.Client.ID
	if err := insertProject(ctx, tx, &conv.Project); err != nil {
		return err
	}
	if conv.Advance != nil {
		conv.Advance.ProjectID = conv.Project.ID
		if err := insertReceipt(ctx, tx, conv.Advance); err != nil {
			return err
		}
	}
	return nil
}

// ConvertLead в одной транзакции блокирует лид, вызывает fn и сохраняет лид, нового
// клиента, проект и аванс.
func (r *PostgresRepository) ConvertLead(ctx context.Context, leadID int64, fn func(lead *model.Lead, profile *model.LeadProfile) (Conversion, error)) (*Conversion, error) {
	var res *Conversion
	err := r.inTx(ctx, "convert lead", func(tx pgx.Tx) error {
		l, err := lockLead(ctx, tx, leadID)
		if err != nil {
			return err
		}
		profile, err := getProfile(ctx, tx, leadID)
		if err != nil {
			return err
		}

		conv, err := fn(l, profile)
		if err != nil {
			return err
		}
		if conv.Lead == nil {
			return fmt.Errorf("conversion of lead %d lost its lead", leadID)
		}

		if err := saveLead(ctx, tx, conv.Lead); err != nil {
			return err
		}
		if err := insertClient(ctx, tx, &conv.Client); err != nil {
			return err
		}
		if err := saveConversion(ctx, tx, &conv); err != nil {
			return err
		}
		res = &conv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// GetClient возвращает клиента по идентификатору.
func (r *PostgresRepository) GetClient(ctx context.Context, id int64) (*model.Client, error) {
	var c *model.Client
	err := r.read(ctx, "get client", func() error {
		var err error
		c, err = scanClient(r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
		return notFound(err, "client", id)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// AddClientProject блокирует клиента и создаёт проект, собранный fn.
func (r *PostgresRepository) AddClientProject(ctx context.Context, clientID int64, fn func(client model.Client) (Conversion, error)) (*Conversion, error) {
	var res *Conversion
	err := r.inTx(ctx, "add client project", func(tx pgx.Tx) error {
		c, err := scanClient(tx.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1 FOR UPDATE`, clientID))
		if err != nil {
			return notFound(err, "client", clientID)
		}

		conv, err := fn(*c)
		if err != nil {
			return err
		}
		conv.Client = *c
		if err := saveConversion(ctx, tx, &conv); err != nil {
			return err
		}
		res = &conv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func loadLedger(ctx context.Context, q querier, projectID int64, lock bool) (*ProjectLedger, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	p, err := scanProject(q.QueryRow(ctx, query, projectID))
	if err != nil {
		return nil, notFound(err, "project", projectID)
	}

	l := &ProjectLedger{Project: *p}

	rows, err := q.Query(ctx,
		`SELECT `+receiptColumns+` FROM payment_receipts WHERE project_id = $1 ORDER BY created_at, id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("select receipts: %w", err)
	}
	for rows.Next() {
		rc, err := scanReceipt(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		l.Receipts = append(l.Receipts, *rc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	rows, err = q.Query(ctx,
		`SELECT `+installmentColumns+` FROM installments WHERE project_id = $1 ORDER BY due_date, id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("select installments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		in, err := scanInstallment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan installment: %w", err)
		}
		l.Installments = append(l.Installments, *in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return l, nil
}

// GetProjectLedger возвращает проект вместе с поступлениями и графиком рассрочки.
func (r *PostgresRepository) GetProjectLedger(ctx context.Context, projectID int64) (*ProjectLedger, error) {
	var l *ProjectLedger
	err := r.read(ctx, "get project", func() error {
		var err error
		l, err = loadLedger(ctx, r.pool, projectID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// UpdateProject блокирует проект, применяет fn и сохраняет статус и прогресс.
func (r *PostgresRepository) UpdateProject(ctx context.Context, id int64, fn func(*model.Project) error) (*model.Project, error) {
	var res *model.Project
	err := r.inTx(ctx, "update project", func(tx pgx.Tx) error {
		p, err := scanProject(tx.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return notFound(err, "project", id)
		}
		if err := fn(p); err != nil {
			return err
		}

		err = tx.QueryRow(ctx,
			`UPDATE projects
			 SET status = $2, work_progress = $3, updated_at = $4, version = version + 1
			 WHERE id = $1
			 RETURNING version`,
			p.ID, string(p.Status), p.WorkProgress, p.UpdatedAt,
		).Scan(&p.Version)
		if err != nil {
			return fmt.Errorf("update project: %w", err)
		}
		res = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CreateReceipt блокирует проект, чтобы параллельные заявки видели друг друга, и сохраняет
// поступление, собранное fn.
func (r *PostgresRepository) CreateReceipt(ctx context.Context, projectID int64, fn func(ProjectLedger) (model.PaymentReceipt, error)) (*model.PaymentReceipt, error) {
	var res *model.PaymentReceipt
	err := r.inTx(ctx, "create receipt", func(tx pgx.Tx) error {
		l, err := loadLedger(ctx, tx, projectID, true)
		if err != nil {
			return err
		}
		rc, err := fn(*l)
		if err != nil {
			return err
		}
		rc.ProjectID = projectID
		if err := insertReceipt(ctx, tx, &rc); err != nil {
			return err
		}
		res = &rc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ReviewReceipt блокирует поступление и кошелёк владельца проекта и сохраняет решение.
func (r *PostgresRepository) ReviewReceipt(ctx context.Context, receiptID int64, fn func(rc *model.PaymentReceipt, project model.Project, w *model.Wallet) error) (*model.PaymentReceipt, error) {
	var res *model.PaymentReceipt
	err := r.inTx(ctx, "review receipt", func(tx pgx.Tx) error {
		rc, err := scanReceipt(tx.QueryRow(ctx,
			`SELECT `+receiptColumns+` FROM payment_receipts WHERE id = $1 FOR UPDATE`, receiptID))
		if err != nil {
			return notFound(err, "receipt", receiptID)
		}
		p, err := scanProject(tx.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, rc.ProjectID))
		if err != nil {
			return notFound(err, "project", rc.ProjectID)
		}
		w, err := lockWalletByOwner(ctx, tx, p.OwnerID)
		if err != nil {
			return err
		}

		if err := fn(rc, *p, w); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE payment_receipts
			 SET status = $2, reviewed_by = $3, reviewed_at = $4, notes = $5
			 WHERE id = $1`,
			rc.ID, string(rc.Status), rc.ReviewedBy, rc.ReviewedAt, rc.Notes,
		)
		if err != nil {
			return fmt.Errorf("update receipt: %w", err)
		}
		if err := saveWallet(ctx, tx, w); err != nil {
			return err
		}
		res = rc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CreateInstallment сохраняет платёж по графику.
func (r *PostgresRepository) CreateInstallment(ctx context.Context, in model.Installment) (*model.Installment, error) {
	err := r.read(ctx, "create installment", func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO installments (project_id, amount, due_date, status, created_at)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			in.ProjectID, in.Amount, in.DueDate, string(in.Status), in.CreatedAt,
		).Scan(&in.ID)
	})
	if err != nil {
		return nil, err
	}
	return &in, nil
}

// UpdateInstallment блокирует платёж по графику, применяет fn и сохраняет статус.
func (r *PostgresRepository) UpdateInstallment(ctx context.Context, id int64, fn func(in *model.Installment, project model.Project) error) (*model.Installment, error) {
	var res *model.Installment
	err := r.inTx(ctx, "update installment", func(tx pgx.Tx) error {
		in, err := scanInstallment(tx.QueryRow(ctx,
			`SELECT `+installmentColumns+` FROM installments WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return notFound(err, "installment", id)
		}
		p, err := scanProject(tx.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, in.ProjectID))
		if err != nil {
			return notFound(err, "project", in.ProjectID)
		}
		if err := fn(in, *p); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE installments SET status = $2, paid_at = $3 WHERE id = $1`,
			in.ID, string(in.Status), in.PaidAt,
		)
		if err != nil {
			return fmt.Errorf("update installment: %w", err)
		}
		res = in
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
