package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizbot/internal/domain"
)

// BankStore keeps raw question bank sources in the question_banks table.
type BankStore struct {
	pool *pgxpool.Pool
}

func NewBankStore(pool *pgxpool.Pool) *BankStore {
	return &BankStore{pool: pool}
}

func (s *BankStore) LoadSource(ctx context.Context, bankID string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM question_banks WHERE id=$1`, bankID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", bankID, domain.ErrBankNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load bank: %w", err)
	}
	return data, nil
}

func (s *BankStore) Save(ctx context.Context, bankID string, data []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO question_banks (id, data, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data, updated_at=now()`, bankID, data)
	if err != nil {
		return fmt.Errorf("save bank: %w", err)
	}
	return nil
}

func (s *BankStore) Delete(ctx context.Context, bankID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM question_banks WHERE id=$1`, bankID)
	if err != nil {
		return fmt.Errorf("delete bank: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", bankID, domain.ErrBankNotFound)
	}
	return nil
}

func (s *BankStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM question_banks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list banks: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan bank id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
