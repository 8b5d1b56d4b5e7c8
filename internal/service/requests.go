package service

import (
	"context"
	"fmt"

	"github.com/mmeshcher/bloodlink-system/internal/model"
	"github.com/mmeshcher/bloodlink-system/internal/repository"
	"github.com/mmeshcher/bloodlink-system/internal/validation"
)

// CreateRequestInput содержит данные для создания заявки на кровь.
type CreateRequestInput struct {
	HospitalID  string
	BloodGroup  string
	Location    string
	Priority    string
	UnitsNeeded int
	Notes       *string
}

func (in *CreateRequestInput) validate() error {
	if in.HospitalID == "" {
		return fmt.Errorf("%w: hospital is required", ErrValidation)
	}
	if in.Location == "" {
		return fmt.Errorf("%w: location is required", ErrValidation)
	}
	if !validation.IsValidBloodGroup(in.BloodGroup) {
		return fmt.Errorf("%w: unknown blood group %q", ErrValidation, in.BloodGroup)
	}
	if in.Priority == "" {
		in.Priority = string(model.PriorityNormal)
	}
	if !validation.IsValidPriority(in.Priority) {
		return fmt.Errorf("%w: unknown priority %q", ErrValidation, in.Priority)
	}
	if in.UnitsNeeded == 0 {
		in.UnitsNeeded = 1
	}
	if in.UnitsNeeded < 0 {
		return fmt.Errorf("%w: units needed must be positive", ErrValidation)
	}
	return nil
}

// CreateRequest создаёт заявку на кровь от имени вызывающего пользователя и
// рассылает широковещательное уведомление по нужной группе крови.
func (s *Service) CreateRequest(ctx context.Context, requesterID string, in CreateRequestInput) (*model.BloodRequest, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	req, err := s.repo.CreateRequest(ctx, repository.CreateRequestParams{
		RequestedByID: requesterID,
		HospitalID:    in.HospitalID,
		BloodGroup:    in.BloodGroup,
		Location:      in.Location,
		Priority:      model.RequestPriority(in.Priority),
		UnitsNeeded:   in.UnitsNeeded,
		Notes:         in.Notes,
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, repository.CreateAnnouncementParams{
		Title:            fmt.Sprintf("Blood needed: %s", req.BloodGroup),
		Message:          fmt.Sprintf("%d unit(s) of %s needed in %s", req.UnitsNeeded, req.BloodGroup, req.Location),
		TargetBloodGroup: &req.BloodGroup,
		CreatedBy:        requesterID,
		RequestID:        &req.ID,
	})

	return req, nil
}

// CreateRequestForUser создаёт заявку от имени указанного пользователя. Доступно только госпиталю.
func (s *Service) CreateRequestForUser(ctx context.Context, callerRole model.Role, requesterID string, in CreateRequestInput) (*model.BloodRequest, error) {
	if err := requireHospital(callerRole); err != nil {
		return nil, err
	}
	if requesterID == "" {
		return nil, fmt.Errorf("%w: requester is required", ErrValidation)
	}
	return s.CreateRequest(ctx, requesterID, in)
}

// MyRequests возвращает заявки, созданные вызывающим пользователем.
func (s *Service) MyRequests(ctx context.Context, callerID string) ([]model.BloodRequest, error) {
	return s.repo.RequestsByUser(ctx, callerID)
}

// IncomingRequests возвращает ожидающие заявки по группе крови донора.
// Если донор недоступен или не указал группу крови, список пуст по определению.
func (s *Service) IncomingRequests(ctx context.Context, callerID string) ([]model.BloodRequest, error) {
	caller, err := s.repo.GetUser(ctx, callerID)
	if err != nil {
		return nil, err
	}

	if caller.BloodGroup == nil || !caller.AvailabilityStatus {
		return []model.BloodRequest{}, nil
	}

	return s.repo.IncomingRequests(ctx, callerID, *caller.BloodGroup)
}

// CompletedDonations возвращает завершённые донации вызывающего пользователя.
func (s *Service) CompletedDonations(ctx context.Context, callerID string) ([]model.BloodRequest, error) {
	return s.repo.CompletedDonations(ctx, callerID)
}

// AcceptRequest закрепляет донора за ожидающей заявкой. Из N одновременных вызовов
// выигрывает ровно один; остальные получают ErrRequestNotPending.
// Реципиент получает адресное уведомление о принятии заявки.
func (s *Service) AcceptRequest(ctx context.Context, requestID, donorID string) (*model.BloodRequest, error) {
	req, err := s.repo.AcceptRequest(ctx, requestID, donorID)
	if err != nil {
		return nil, err
	}

	donorName := "a donor"
	if donor, err := s.repo.GetUser(ctx, donorID); err == nil && donor.Name != "" {
		donorName = donor.Name
	}

	s.notify(ctx, repository.CreateAnnouncementParams{
		Title:        "Request accepted",
		Message:      fmt.Sprintf("Your blood request was accepted by %s", donorName),
		TargetUserID: &req.RequestedByID,
		CreatedBy:    donorID,
		RequestID:    &req.ID,
	})

	return req, nil
}

// CancelRequest отменяет ожидающую заявку. Заявки в других статусах не отменяются.
func (s *Service) CancelRequest(ctx context.Context, requestID string) (*model.BloodRequest, error) {
	return s.repo.CancelRequest(ctx, requestID)
}

// CompleteRequest завершает принятую заявку и начисляет донацию закреплённому донору.
func (s *Service) CompleteRequest(ctx context.Context, requestID string) (*model.BloodRequest, error) {
	return s.repo.CompleteRequest(ctx, requestID)
}

// DeleteRequest удаляет заявку. Доступно госпиталю либо автору заявки.
func (s *Service) DeleteRequest(ctx context.Context, requestID, callerID string, callerRole model.Role) error {
	if callerRole != model.RoleHospital {
		req, err := s.repo.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.RequestedByID != callerID {
			return fmt.Errorf("%w: only the requester or a hospital may delete a request", ErrForbidden)
		}
	}
	return s.repo.DeleteRequest(ctx, requestID)
}
