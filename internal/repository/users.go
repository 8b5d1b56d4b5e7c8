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

const userColumns = `id, username, password_hash, role, name, age, blood_group, phone, location,
	 can_donate, availability_status, donation_count, last_donation_date,
	 is_verified, created_by_hospital, id_document_url, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Name, &u.Age, &u.BloodGroup,
		&u.Phone, &u.Location, &u.CanDonate, &u.AvailabilityStatus, &u.DonationCount,
		&u.LastDonationDate, &u.IsVerified, &u.CreatedByHospital, &u.IDDocumentURL,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUserParams содержит данные для создания пользователя.
type CreateUserParams struct {
	Username           string
	PasswordHash       []byte
	Role               model.Role
	Name               string
	Age                *int
	BloodGroup         *string
	Phone              *string
	Location           *string
	CanDonate          bool
	AvailabilityStatus bool
	IsVerified         bool
	CreatedByHospital  bool
	IDDocumentURL      *string
}

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, p CreateUserParams) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (username, password_hash, role, name, age, blood_group, phone, location,
		                    can_donate, availability_status, is_verified, created_by_hospital, id_document_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING `+userColumns,
		p.Username, p.PasswordHash, string(p.Role), p.Name, p.Age, p.BloodGroup, p.Phone, p.Location,
		p.CanDonate, p.AvailabilityStatus, p.IsVerified, p.CreatedByHospital, p.IDDocumentURL,
	)

	u, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, p.Username)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUser возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUser(ctx context.Context, id string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetUserByUsername возвращает пользователя по имени учётной записи.
func (r *PostgresRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

// UpdateProfileParams содержит изменяемые поля профиля. Nil-поля остаются без изменений.
type UpdateProfileParams struct {
	Name               *string
	Age                *int
	BloodGroup         *string
	Phone              *string
	Location           *string
	CanDonate          *bool
	AvailabilityStatus *bool
}

// UpdateProfile обновляет профиль пользователя и возвращает актуальное состояние.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, id string, p UpdateProfileParams) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE users
		 SET name                = COALESCE($2, name),
		     age                 = COALESCE($3, age),
		     blood_group         = COALESCE($4, blood_group),
		     phone               = COALESCE($5, phone),
		     location            = COALESCE($6, location),
		     can_donate          = COALESCE($7, can_donate),
		     availability_status = COALESCE($8, availability_status),
		     updated_at          = now()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, p.Name, p.Age, p.BloodGroup, p.Phone, p.Location, p.CanDonate, p.AvailabilityStatus,
	)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return u, nil
}

// SetUserVerified помечает пользователя как верифицированного госпиталем.
func (r *PostgresRepository) SetUserVerified(ctx context.Context, id string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE users SET is_verified = true, updated_at = now() WHERE id = $1 RETURNING `+userColumns,
		id,
	)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("verify user: %w", err)
	}
	return u, nil
}

// DeleteUser удаляет пользователя по идентификатору.
func (r *PostgresRepository) DeleteUser(ctx context.Context, id string) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateUserStatus обновляет флаги донорства пользователя. Nil-поля остаются без изменений.
func (r *PostgresRepository) UpdateUserStatus(ctx context.Context, id string, canDonate, availabilityStatus *bool) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE users
		 SET can_donate          = COALESCE($2, can_donate),
		     availability_status = COALESCE($3, availability_status),
		     updated_at          = now()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, canDonate, availabilityStatus,
	)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update user status: %w", err)
	}
	return u, nil
}

// ListUsers возвращает всех пользователей, сначала самых новых.
func (r *PostgresRepository) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return users, nil
}

// DonorFilter задаёт фильтры поиска доноров. Nil-поля не применяются.
type DonorFilter struct {
	BloodGroup    *string
	Location      *string
	OnlyAvailable bool
}

// SearchDonors возвращает доноров по фильтрам, исключая самого ищущего.
// Доступные доноры и доноры с большим числом донаций идут первыми.
func (r *PostgresRepository) SearchDonors(ctx context.Context, excludeUserID string, f DonorFilter) ([]model.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+`
		 FROM users
		 WHERE role = $1
		   AND can_donate
		   AND id <> $2
		   AND ($3::text IS NULL OR blood_group = $3)
		   AND ($4::text IS NULL OR location ILIKE '%' || $4 || '%')
		   AND (NOT $5::boolean OR availability_status)
		 ORDER BY availability_status DESC, donation_count DESC`,
		string(model.RoleDonorReceiver), excludeUserID, f.BloodGroup, f.Location, f.OnlyAvailable,
	)
	if err != nil {
		return nil, fmt.Errorf("select donors: %w", err)
	}
	defer rows.Close()

	var donors []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan donor: %w", err)
		}
		donors = append(donors, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return donors, nil
}

// GetStats возвращает агрегированные показатели платформы.
func (r *PostgresRepository) GetStats(ctx context.Context) (*model.Stats, error) {
	var s model.Stats
	err := r.pool.QueryRow(ctx,
		`SELECT
		   (SELECT count(*) FROM users WHERE role = $1 AND can_donate),
		   (SELECT count(*) FROM users WHERE role = $1 AND can_donate AND availability_status),
		   (SELECT count(*) FROM blood_requests WHERE status IN ($3, $4)),
		   (SELECT count(*) FROM blood_requests WHERE status = $5),
		   (SELECT count(*) FROM users WHERE role = $2)`,
		string(model.RoleDonorReceiver), string(model.RoleHospital),
		string(model.RequestStatusPending), string(model.RequestStatusAccepted),
		string(model.RequestStatusCompleted),
	).Scan(&s.TotalDonors, &s.AvailableDonors, &s.PendingRequests, &s.CompletedDonations, &s.TotalHospitals)
	if err != nil {
		return nil, fmt.Errorf("select stats: %w", err)
	}
	return &s, nil
}
