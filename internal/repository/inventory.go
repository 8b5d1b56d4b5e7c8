package repository

import (
	"context"
	"fmt"

	"github.com/mmeshcher/bloodlink-system/internal/model"
)

// Inventory возвращает запасы крови госпиталя по всем группам.
func (r *PostgresRepository) Inventory(ctx context.Context, hospitalID string) ([]model.BloodStock, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, hospital_id, blood_group, units_available, last_updated
		 FROM hospital_blood_stock
		 WHERE hospital_id = $1
		 ORDER BY blood_group`,
		hospitalID,
	)
	if err != nil {
		return nil, fmt.Errorf("select inventory: %w", err)
	}
	defer rows.Close()

	var stock []model.BloodStock
	for rows.Next() {
		var s model.BloodStock
		if err := rows.Scan(&s.ID, &s.HospitalID, &s.BloodGroup, &s.UnitsAvailable, &s.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		stock = append(stock, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return stock, nil
}

// AdjustInventory применяет знаковую дельту к запасу (hospital, bloodGroup) одним upsert-запросом.
// Итоговое значение ограничивается снизу нулём.
func (r *PostgresRepository) AdjustInventory(ctx context.Context, hospitalID, bloodGroup string, delta int) (*model.BloodStock, error) {
	var s model.BloodStock

	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO hospital_blood_stock (hospital_id, blood_group, units_available)
			 VALUES ($1, $2, GREATEST(0, $3))
			 ON CONFLICT (hospital_id, blood_group) DO UPDATE
			 SET units_available = GREATEST(0, hospital_blood_stock.units_available + $3),
			     last_updated    = now()
			 RETURNING id, hospital_id, blood_group, units_available, last_updated`,
			hospitalID, bloodGroup, delta,
		).Scan(&s.ID, &s.HospitalID, &s.BloodGroup, &s.UnitsAvailable, &s.LastUpdated)
	})
	if err != nil {
		return nil, fmt.Errorf("adjust inventory: %w", err)
	}

	return &s, nil
}

// InitializeInventory создаёт нулевые записи для всех восьми групп крови госпиталя.
// Повторные вызовы безопасны.
func (r *PostgresRepository) InitializeInventory(ctx context.Context, hospitalID string) error {
	for _, bg := range model.BloodGroups {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO hospital_blood_stock (hospital_id, blood_group, units_available)
			 VALUES ($1, $2, 0)
			 ON CONFLICT (hospital_id, blood_group) DO NOTHING`,
			hospitalID, bg,
		)
		if err != nil {
			return fmt.Errorf("initialize inventory: %w", err)
		}
	}
	return nil
}
