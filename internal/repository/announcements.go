package repository

import (
	"context"
	"fmt"

	"github.com/mmeshcher/bloodlink-system/internal/model"
)

// CreateAnnouncementParams содержит данные для создания уведомления.
type CreateAnnouncementParams struct {
	Title            string
	Message          string
	TargetBloodGroup *string
	TargetUserID     *string
	CreatedBy        string
	RequestID        *string
}

// CreateAnnouncement создаёт уведомление.
func (r *PostgresRepository) CreateAnnouncement(ctx context.Context, p CreateAnnouncementParams) (*model.Announcement, error) {
	var a model.Announcement
	err := r.pool.QueryRow(ctx,
		`INSERT INTO announcements (title, message, target_blood_group, target_user_id, created_by, request_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, title, message, target_blood_group, target_user_id, created_by, request_id, created_at`,
		p.Title, p.Message, p.TargetBloodGroup, p.TargetUserID, p.CreatedBy, p.RequestID,
	).Scan(&a.ID, &a.Title, &a.Message, &a.TargetBloodGroup, &a.TargetUserID, &a.CreatedBy, &a.RequestID, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create announcement: %w", err)
	}
	return &a, nil
}

// AnnouncementsForUser возвращает уведомления, видимые пользователю: адресованные ему лично
// либо широковещательные (глобальные или совпадающие с его группой крови).
func (r *PostgresRepository) AnnouncementsForUser(ctx context.Context, userID string, bloodGroup *string) ([]model.Announcement, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.title, a.message, a.target_blood_group, a.target_user_id,
		        a.created_by, COALESCE(u.name, ''), a.request_id, a.created_at
		 FROM announcements a
		 LEFT JOIN users u ON u.id = a.created_by
		 WHERE a.target_user_id = $1
		    OR (a.target_user_id IS NULL
		        AND (a.target_blood_group IS NULL OR a.target_blood_group = $2))
		 ORDER BY a.created_at DESC`,
		userID, bloodGroup,
	)
	if err != nil {
		return nil, fmt.Errorf("select announcements: %w", err)
	}
	defer rows.Close()

	var announcements []model.Announcement
	for rows.Next() {
		var a model.Announcement
		err := rows.Scan(&a.ID, &a.Title, &a.Message, &a.TargetBloodGroup, &a.TargetUserID,
			&a.CreatedBy, &a.CreatorName, &a.RequestID, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan announcement: %w", err)
		}
		announcements = append(announcements, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return announcements, nil
}
