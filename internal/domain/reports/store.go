package reports

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) CountByStatus(ctx context.Context, fyLabel string) (map[string]int, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT status, COUNT(1)
    FROM pdrs
    WHERE fy_label = $1
    GROUP BY status
  `, fyLabel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		out[status] = count
	}
	return out, rows.Err()
}

// AwaitingCEO counts PDRs whose next transition belongs to the CEO.
func (s *Store) AwaitingCEO(ctx context.Context, fyLabel string) (int, error) {
	var total int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM pdrs
    WHERE fy_label = $1 AND status IN ('SUBMITTED','MID_YEAR_SUBMITTED','END_YEAR_SUBMITTED')
  `, fyLabel).Scan(&total)
	return total, err
}

func (s *Store) Uncalibrated(ctx context.Context, fyLabel string) (int, error) {
	var total int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM pdrs
    WHERE fy_label = $1 AND status = 'COMPLETED' AND calibrated_at IS NULL
  `, fyLabel).Scan(&total)
	return total, err
}

func (s *Store) EmployeeName(ctx context.Context, userID string) (string, error) {
	var name string
	if err := s.DB.QueryRow(ctx, "SELECT name FROM users WHERE id = $1", userID).Scan(&name); err != nil {
		return "", err
	}
	return name, nil
}
