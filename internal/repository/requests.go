package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mmeshcher/bloodlink-system/internal/model"
)

const requestColumns = `id, requested_by_id, hospital_id, blood_group, location, priority,
	 units_needed, notes, status, matched_donor_id, created_at, updated_at`

func scanRequest(row pgx.Row) (*model.BloodRequest, error) {
	var req model.BloodRequest
	err := row.Scan(
		&req.ID, &req.RequestedByID, &req.HospitalID, &req.BloodGroup, &req.Location,
		&req.Priority, &req.UnitsNeeded, &req.Notes, &req.Status, &req.MatchedDonorID,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *PostgresRepository) selectRequests(ctx context.Context, query string, args ...any) ([]model.BloodRequest, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select requests: %w", err)
	}
	defer rows.Close()

	var requests []model.BloodRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		requests = append(requests, *req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return requests, nil
}

// CreateRequestParams содержит данные для создания заявки на кровь.
type CreateRequestParams struct {
	RequestedByID string
	HospitalID    string
	BloodGroup    string
	Location      string
	Priority      model.RequestPriority
	UnitsNeeded   int
	Notes         *string
}

// CreateRequest создаёт новую заявку в статусе pending.
func (r *PostgresRepository) CreateRequest(ctx context.Context, p CreateRequestParams) (*model.BloodRequest, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO blood_requests (requested_by_id, hospital_id, blood_group, location, priority, units_needed, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+requestColumns,
		p.RequestedByID, p.HospitalID, p.BloodGroup, p.Location, string(p.Priority), p.UnitsNeeded, p.Notes,
	)

	req, err := scanRequest(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return nil, fmt.Errorf("%w: referenced user", ErrNotFound)
		}
		return nil, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

// GetRequest возвращает заявку по идентификатору.
func (r *PostgresRepository) GetRequest(ctx context.Context, id string) (*model.BloodRequest, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM blood_requests WHERE id = $1`, id)

	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	return req, nil
}

// RequestsByUser возвращает заявки, созданные пользователем, сначала самые новые.
func (r *PostgresRepository) RequestsByUser(ctx context.Context, userID string) ([]model.BloodRequest, error) {
	return r.selectRequests(ctx,
		`SELECT `+requestColumns+`
		 FROM blood_requests
		 WHERE requested_by_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
}

// IncomingRequests возвращает ожидающие заявки по группе крови донора,
// исключая его собственные заявки. Экстренные заявки идут первыми.
func (r *PostgresRepository) IncomingRequests(ctx context.Context, donorID, bloodGroup string) ([]model.BloodRequest, error) {
	return r.selectRequests(ctx,
		`SELECT `+requestColumns+`
		 FROM blood_requests
		 WHERE blood_group = $1
		   AND status = $2
		   AND requested_by_id <> $3
		 ORDER BY (priority = $4) DESC, created_at DESC`,
		bloodGroup, string(model.RequestStatusPending), donorID, string(model.PriorityEmergency),
	)
}

// CompletedDonations возвращает завершённые заявки, в которых пользователь был донором.
func (r *PostgresRepository) CompletedDonations(ctx context.Context, donorID string) ([]model.BloodRequest, error) {
	return r.selectRequests(ctx,
		`SELECT `+requestColumns+`
		 FROM blood_requests
		 WHERE matched_donor_id = $1
		   AND status = $2
		 ORDER BY updated_at DESC`,
		donorID, string(model.RequestStatusCompleted),
	)
}

// RequestsByHospital возвращает заявки, направленные через госпиталь. Экстренные заявки идут первыми.
func (r *PostgresRepository) RequestsByHospital(ctx context.Context, hospitalID string) ([]model.BloodRequest, error) {
	return r.selectRequests(ctx,
		`SELECT `+requestColumns+`
		 FROM blood_requests
		 WHERE hospital_id = $1
		 ORDER BY (priority = $2) DESC, created_at DESC`,
		hospitalID, string(model.PriorityEmergency),
	)
}

// statusOrNotFound различает отсутствующую заявку и заявку в неподходящем статусе.
func (r *PostgresRepository) statusOrNotFound(ctx context.Context, id string, stateErr error) error {
	var status string
	err := r.pool.QueryRow(ctx, `SELECT status FROM blood_requests WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("probe request status: %w", err)
	}
	return fmt.Errorf("%w: status %s", stateErr, status)
}

// AcceptRequest атомарно переводит заявку pending -> accepted и закрепляет донора.
// Условное обновление гарантирует, что из N одновременных попыток выигрывает одна.
func (r *PostgresRepository) AcceptRequest(ctx context.Context, requestID, donorID string) (*model.BloodRequest, error) {
	var req *model.BloodRequest

	err := r.withRetry(ctx, func() error {
		row := r.pool.QueryRow(ctx,
			`UPDATE blood_requests
			 SET status = $3, matched_donor_id = $2, updated_at = now()
			 WHERE id = $1 AND status = $4
			 RETURNING `+requestColumns,
			requestID, donorID, string(model.RequestStatusAccepted), string(model.RequestStatusPending),
		)

		var err error
		req, err = scanRequest(row)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.statusOrNotFound(ctx, requestID, ErrRequestNotPending)
		}
		return nil, fmt.Errorf("accept request: %w", err)
	}

	return req, nil
}

// CompleteRequest атомарно переводит заявку accepted -> completed и в той же транзакции
// увеличивает счётчик донаций закреплённого донора и фиксирует дату донации.
func (r *PostgresRepository) CompleteRequest(ctx context.Context, requestID string) (*model.BloodRequest, error) {
	var req *model.BloodRequest

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		row := tx.QueryRow(ctx,
			`UPDATE blood_requests
			 SET status = $2, updated_at = now()
			 WHERE id = $1 AND status = $3
			 RETURNING `+requestColumns,
			requestID, string(model.RequestStatusCompleted), string(model.RequestStatusAccepted),
		)

		req, err = scanRequest(row)
		if err != nil {
			return err
		}

		if req.MatchedDonorID != nil {
			_, err = tx.Exec(ctx,
				`UPDATE users
				 SET donation_count = donation_count + 1, last_donation_date = now(), updated_at = now()
				 WHERE id = $1`,
				*req.MatchedDonorID,
			)
			if err != nil {
				return fmt.Errorf("update donor stats: %w", err)
			}
		}

		return tx.Commit(ctx)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.statusOrNotFound(ctx, requestID, ErrRequestNotAccepted)
		}
		return nil, fmt.Errorf("complete request: %w", err)
	}

	return req, nil
}

// CancelRequest переводит заявку pending -> cancelled.
func (r *PostgresRepository) CancelRequest(ctx context.Context, requestID string) (*model.BloodRequest, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE blood_requests
		 SET status = $2, updated_at = now()
		 WHERE id = $1 AND status = $3
		 RETURNING `+requestColumns,
		requestID, string(model.RequestStatusCancelled), string(model.RequestStatusPending),
	)

	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.statusOrNotFound(ctx, requestID, ErrRequestNotPending)
		}
		return nil, fmt.Errorf("cancel request: %w", err)
	}
	return req, nil
}

// DeleteRequest удаляет заявку по идентификатору.
func (r *PostgresRepository) DeleteRequest(ctx context.Context, requestID string) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM blood_requests WHERE id = $1`, requestID)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
