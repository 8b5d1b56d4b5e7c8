package service

import (
	"context"
	"fmt"

	"github.com/mmeshcher/bloodlink-system/internal/model"
	"github.com/mmeshcher/bloodlink-system/internal/repository"
	"github.com/mmeshcher/bloodlink-system/internal/validation"
)

func requireHospital(role model.Role) error {
	if role != model.RoleHospital {
		return fmt.Errorf("%w: hospital role required", ErrForbidden)
	}
	return nil
}

// ListUsers возвращает всех пользователей платформы. Доступно только госпиталю.
func (s *Service) ListUsers(ctx context.Context, callerRole model.Role) ([]model.User, error) {
	if err := requireHospital(callerRole); err != nil {
		return nil, err
	}
	return s.repo.ListUsers(ctx)
}

// HospitalCreateUserInput содержит данные для создания пользователя госпиталем.
type HospitalCreateUserInput struct {
	Username   string
	Name       string
	Age        *int
	BloodGroup string
	Phone      *string
	Location   string
	CanDonate  *bool
}

// CreateUserByHospital создаёт донора от имени госпиталя. Такие пользователи
// сразу считаются верифицированными.
func (s *Service) CreateUserByHospital(ctx context.Context, callerRole model.Role, in HospitalCreateUserInput) (*model.User, error) {
	if err := requireHospital(callerRole); err != nil {
		return nil, err
	}
	if in.Username == "" || in.Name == "" || in.Location == "" {
		return nil, fmt.Errorf("%w: username, name and location are required", ErrValidation)
	}
	if !validation.IsValidBloodGroup(in.BloodGroup) {
		return nil, fmt.Errorf("%w: unknown blood group %q", ErrValidation, in.BloodGroup)
	}

	canDonate := true
	if in.CanDonate != nil {
		canDonate = *in.CanDonate
	}

	return s.repo.CreateUser(ctx, repository.CreateUserParams{
		Username:          in.Username,
		Role:              model.RoleDonorReceiver,
		Name:              in.Name,
		Age:               in.Age,
		BloodGroup:        &in.BloodGroup,
		Phone:             in.Phone,
		Location:          &in.Location,
		CanDonate:         canDonate,
		IsVerified:        true,
		CreatedByHospital: true,
	})
}

// VerifyUser помечает пользователя как верифицированного. Доступно только госпиталю.
func (s *Service) VerifyUser(ctx context.Context, callerRole model.Role, userID string) (*model.User, error) {
	if err := requireHospital(callerRole); err != nil {
		return nil, err
	}
	return s.repo.SetUserVerified(ctx, userID)
}

// DeleteUser удаляет пользователя. Доступно только госпиталю и только для
// ещё не верифицированных учётных записей.
func (s *Service) DeleteUser(ctx context.Context, callerRole model.Role, userID string) error {
	if err := requireHospital(callerRole); err != nil {
		return err
	}

	target, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if target.IsVerified {
		return fmt.Errorf("%w: verified users cannot be deleted", ErrForbidden)
	}

	return s.repo.DeleteUser(ctx, userID)
}

// UpdateUserStatus переопределяет флаги донорства пользователя. Доступно только госпиталю.
func (s *Service) UpdateUserStatus(ctx context.Context, callerRole model.Role, userID string, canDonate, availabilityStatus *bool) (*model.User, error) {
	if err := requireHospital(callerRole); err != nil {
		return nil, err
	}
	return s.repo.UpdateUserStatus(ctx, userID, canDonate, availabilityStatus)
}

// Stats возвращает агрегированные показатели платформы. Доступно только госпиталю.
func (s *Service) Stats(ctx context.Context, callerRole model.Role) (*model.Stats, error) {
	if err := requireHospital(callerRole); err != nil {
		return nil, err
	}
	return s.repo.GetStats(ctx)
}

// HospitalRequests возвращает заявки, направленные через госпиталь вызывающего.
func (s *Service) HospitalRequests(ctx context.Context, callerID string, callerRole model.Role) ([]model.BloodRequest, error) {
	if err := requireHospital(callerRole); err != nil {
		return nil, err
	}
	return s.repo.RequestsByHospital(ctx, callerID)
}

// Inventory возвращает запасы крови госпиталя, при первом обращении создавая
// нулевые записи для всех восьми групп.
func (s *Service) Inventory(ctx context.Context, callerID string, callerRole model.Role) ([]model.BloodStock, error) {
	if err := requireHospital(callerRole); err != nil {
		return nil, err
	}

	if err := s.repo.InitializeInventory(ctx, callerID); err != nil {
		return nil, err
	}

	return s.repo.Inventory(ctx, callerID)
}

// AdjustInventory применяет знаковую дельту к запасу своей группы крови.
// Итог не опускается ниже нуля. Доступно только госпиталю.
func (s *Service) AdjustInventory(ctx context.Context, callerID string, callerRole model.Role, bloodGroup string, delta int) (*model.BloodStock, error) {
	if err := requireHospital(callerRole); err != nil {
		return nil, err
	}
	if !validation.IsValidBloodGroup(bloodGroup) {
		return nil, fmt.Errorf("%w: unknown blood group %q", ErrValidation, bloodGroup)
	}
	return s.repo.AdjustInventory(ctx, callerID, bloodGroup, delta)
}

// CreateAnnouncementInput содержит данные уведомления, создаваемого госпиталем.
type CreateAnnouncementInput struct {
	Title            string
	Message          string
	TargetBloodGroup *string
}

// CreateAnnouncement создаёт уведомление от имени госпиталя: адресное по группе
// крови либо глобальное.
func (s *Service) CreateAnnouncement(ctx context.Context, callerID string, callerRole model.Role, in CreateAnnouncementInput) (*model.Announcement, error) {
	if err := requireHospital(callerRole); err != nil {
		return nil, err
	}
	if in.Title == "" || in.Message == "" {
		return nil, fmt.Errorf("%w: title and message are required", ErrValidation)
	}
	if in.TargetBloodGroup != nil && !validation.IsValidBloodGroup(*in.TargetBloodGroup) {
		return nil, fmt.Errorf("%w: unknown blood group %q", ErrValidation, *in.TargetBloodGroup)
	}

	return s.repo.CreateAnnouncement(ctx, repository.CreateAnnouncementParams{
		Title:            in.Title,
		Message:          in.Message,
		TargetBloodGroup: in.TargetBloodGroup,
		CreatedBy:        callerID,
	})
}
