package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/leadflow/internal/model"
)

const walletColumns = `id, owner_id, balance, total_earned, total_withdrawn, version, updated_at`

func scanWallet(row pgx.Row) (*model.Wallet, error) {
	var w model.Wallet
	if err := row.Scan(&w.ID, &w.OwnerID, &w.Balance, &w.TotalEarned, &w.TotalWithdrawn, &w.Version, &w.UpdatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

const withdrawalColumns = `id, wallet_id, amount, description, status, reviewed_by, review_note, created_at, reviewed_at`

func scanWithdrawal(row pgx.Row) (*model.WithdrawalRequest, error) {
	var (
		req    model.WithdrawalRequest
		status string
	)
	err := row.Scan(&req.ID, &req.WalletID, &req.Amount, &req.Description, &status,
		&req.ReviewedBy, &req.ReviewNote, &req.CreatedAt, &req.ReviewedAt)
	if err != nil {
		return nil, err
	}
	req.Status = model.ApprovalStatus(status)
	return &req, nil
}

func ensureWallet(ctx context.Context, q querier, ownerID int64) error {
	_, err := q.Exec(ctx,
		`INSERT INTO wallets (owner_id) VALUES ($1) ON CONFLICT (owner_id) DO NOTHING`,
		ownerID,
	)
	if err != nil {
		return fmt.Errorf("ensure wallet: %w", err)
	}
	return nil
}

// lockWalletByOwner создаёт кошелёк при необходимости и блокирует его строку для
// сериализации операций с балансом.
func lockWalletByOwner(ctx context.Context, tx pgx.Tx, ownerID int64) (*model.Wallet, error) {
	if err := ensureWallet(ctx, tx, ownerID); err != nil {
		return nil, err
	}
	w, err := scanWallet(tx.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE owner_id = $1 FOR UPDATE`, ownerID))
	if err != nil {
		return nil, fmt.Errorf("lock wallet for update: %w", err)
	}
	return w, nil
}

func saveWallet(ctx context.Context, q querier, w *model.Wallet) error {
	err := q.QueryRow(ctx,
		`UPDATE wallets
		 SET balance = $2, total_earned = $3, total_withdrawn = $4, updated_at = $5, version = version + 1
		 WHERE id = $1
		 RETURNING version`,
		w.ID, w.Balance, w.TotalEarned, w.TotalWithdrawn, w.UpdatedAt,
	).Scan(&w.Version)
	if err != nil {
		return fmt.Errorf("update wallet: %w", err)
	}
	return nil
}

// GetWallet возвращает кошелёк владельца, создавая пустой при первом обращении.
func (r *PostgresRepository) GetWallet(ctx context.Context, ownerID int64) (*model.Wallet, error) {
	var w *model.Wallet
	err := r.read(ctx, "get wallet", func() error {
		if err := ensureWallet(ctx, r.pool, ownerID); err != nil {
			return err
		}
		var err error
		w, err = scanWallet(r.pool.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE owner_id = $1`, ownerID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// CreateWithdrawal блокирует кошелёк владельца и сохраняет заявку, собранную fn.
// Блокировка не даёт двум параллельным заявкам проверить один и тот же баланс.
func (r *PostgresRepository) CreateWithdrawal(ctx context.Context, ownerID int64, fn func(w model.Wallet) (model.WithdrawalRequest, error)) (*model.WithdrawalRequest, error) {
	var res *model.WithdrawalRequest
	err := r.inTx(ctx, "create withdrawal", func(tx pgx.Tx) error {
		w, err := lockWalletByOwner(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		req, err := fn(*w)
		if err != nil {
			return err
		}
		req.WalletID = w.ID

		err = tx.QueryRow(ctx,
			`INSERT INTO withdrawal_requests (wallet_id, amount, description, status, created_at)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			req.WalletID, req.Amount, req.Description, string(req.Status), req.CreatedAt,
		).Scan(&req.ID)
		if err != nil {
			return fmt.Errorf("insert withdrawal: %w", err)
		}
		res = &req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ReviewWithdrawal блокирует заявку и её кошелёк и сохраняет решение вместе с балансом.
func (r *PostgresRepository) ReviewWithdrawal(ctx context.Context, requestID int64, fn func(w *model.Wallet, req *model.WithdrawalRequest) error) (*model.WithdrawalRequest, error) {
	var res *model.WithdrawalRequest
	err := r.inTx(ctx, "review withdrawal", func(tx pgx.Tx) error {
		req, err := scanWithdrawal(tx.QueryRow(ctx,
			`SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = $1 FOR UPDATE`, requestID))
		if err != nil {
			return notFound(err, "withdrawal", requestID)
		}
		w, err := scanWallet(tx.QueryRow(ctx,
			`SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, req.WalletID))
		if err != nil {
			return notFound(err, "wallet", req.WalletID)
		}

		if err := fn(w, req); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE withdrawal_requests
			 SET status = $2, reviewed_by = $3, review_note = $4, reviewed_at = $5
			 WHERE id = $1`,
			req.ID, string(req.Status), req.ReviewedBy, req.ReviewNote, req.ReviewedAt,
		)
		if err != nil {
			return fmt.Errorf("update withdrawal: %w", err)
		}
		if err := saveWallet(ctx, tx, w); err != nil {
			return err
		}
		res = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ListWithdrawals возвращает историю заявок владельца кошелька.
func (r *PostgresRepository) ListWithdrawals(ctx context.Context, ownerID int64) ([]model.WithdrawalRequest, error) {
	var res []model.WithdrawalRequest
	err := r.read(ctx, "list withdrawals", func() error {
		res = res[:0]
		rows, err := r.pool.Query(ctx,
			`SELECT wr.id, wr.wallet_id, wr.amount, wr.description, wr.status, wr.reviewed_by, wr.review_note,
			        wr.created_at, wr.reviewed_at
			 FROM withdrawal_requests wr
			 JOIN wallets w ON w.id = wr.wallet_id
			 WHERE w.owner_id = $1
			 ORDER BY wr.created_at DESC`,
			ownerID,
		)
		if err != nil {
			return fmt.Errorf("select withdrawals: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			req, err := scanWithdrawal(rows)
			if err != nil {
				return fmt.Errorf("scan withdrawal: %w", err)
			}
			res = append(res, *req)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
