// Package service реализует бизнес-логику сервиса bloodlink.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/bloodlink-system/internal/model"
	"github.com/mmeshcher/bloodlink-system/internal/repository"
	"github.com/mmeshcher/bloodlink-system/internal/validation"
)

// ErrValidation возвращается при отсутствующих или некорректных обязательных полях.
var (
	ErrValidation = errors.New("validation failed")
	// ErrForbidden возвращается, если роль или владение не дают права на операцию.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials возвращается при неверной паре логин/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, p repository.CreateUserParams) (*model.User, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	UpdateProfile(ctx context.Context, id string, p repository.UpdateProfileParams) (*model.User, error)
	SetUserVerified(ctx context.Context, id string) (*model.User, error)
	DeleteUser(ctx context.Context, id string) error
	UpdateUserStatus(ctx context.Context, id string, canDonate, availabilityStatus *bool) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	SearchDonors(ctx context.Context, excludeUserID string, f repository.DonorFilter) ([]model.User, error)
	GetStats(ctx context.Context) (*model.Stats, error)

	CreateRequest(ctx context.Context, p repository.CreateRequestParams) (*model.BloodRequest, error)
	GetRequest(ctx context.Context, id string) (*model.BloodRequest, error)
	RequestsByUser(ctx context.Context, userID string) ([]model.BloodRequest, error)
	IncomingRequests(ctx context.Context, donorID, bloodGroup string) ([]model.BloodRequest, error)
	CompletedDonations(ctx context.Context, donorID string) ([]model.BloodRequest, error)
	RequestsByHospital(ctx context.Context, hospitalID string) ([]model.BloodRequest, error)
	AcceptRequest(ctx context.Context, requestID, donorID string) (*model.BloodRequest, error)
	CompleteRequest(ctx context.Context, requestID string) (*model.BloodRequest, error)
	CancelRequest(ctx context.Context, requestID string) (*model.BloodRequest, error)
	DeleteRequest(ctx context.Context, requestID string) error

	Inventory(ctx context.Context, hospitalID string) ([]model.BloodStock, error)
	AdjustInventory(ctx context.Context, hospitalID, bloodGroup string, delta int) (*model.BloodStock, error)
	InitializeInventory(ctx context.Context, hospitalID string) error

	CreateAnnouncement(ctx context.Context, p repository.CreateAnnouncementParams) (*model.Announcement, error)
	AnnouncementsForUser(ctx context.Context, userID string, bloodGroup *string) ([]model.Announcement, error)
}

// Notifier отправляет уведомление как побочный эффект операции жизненного цикла.
// Сбой отправки не должен влиять на саму операцию.
type Notifier interface {
	Notify(ctx context.Context, event repository.CreateAnnouncementParams) error
}

type announcementNotifier struct {
	repo Repository
}

// NewAnnouncementNotifier создаёт Notifier, сохраняющий уведомления в хранилище.
func NewAnnouncementNotifier(repo Repository) Notifier {
	return &announcementNotifier{repo: repo}
}

func (n *announcementNotifier) Notify(ctx context.Context, event repository.CreateAnnouncementParams) error {
	_, err := n.repo.CreateAnnouncement(ctx, event)
	return err
}

// Service содержит бизнес-логику сервиса bloodlink.
type Service struct {
	repo     Repository
	notifier Notifier
	logger   *zap.Logger
}

// NewService создаёт новый сервис с указанным репозиторием и каналом уведомлений.
func NewService(repo Repository, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// notify отправляет уведомление по принципу fire-and-forget: ошибка логируется, но не возвращается.
func (s *Service) notify(ctx context.Context, event repository.CreateAnnouncementParams) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logger.Warn("notification failed", zap.Error(err), zap.String("title", event.Title))
	}
}

// RegisterInput содержит данные самостоятельной регистрации.
type RegisterInput struct {
	Username      string
	Password      string
	Name          string
	Age           *int
	BloodGroup    *string
	Phone         *string
	Location      *string
	CanDonate     bool
	IDDocumentURL *string
}

// Register регистрирует нового донора/реципиента. Учётная запись создаётся неверифицированной.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	if in.Username == "" || in.Password == "" || in.Name == "" {
		return nil, fmt.Errorf("%w: username, password and name are required", ErrValidation)
	}
	if in.BloodGroup != nil && !validation.IsValidBloodGroup(*in.BloodGroup) {
		return nil, fmt.Errorf("%w: unknown blood group %q", ErrValidation, *in.BloodGroup)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	return s.repo.CreateUser(ctx, repository.CreateUserParams{
		Username:      in.Username,
		PasswordHash:  hash,
		Role:          model.RoleDonorReceiver,
		Name:          in.Name,
		Age:           in.Age,
		BloodGroup:    in.BloodGroup,
		Phone:         in.Phone,
		Location:      in.Location,
		CanDonate:     in.CanDonate,
		IDDocumentURL: in.IDDocumentURL,
	})
}

// Authenticate проверяет логин и пароль пользователя.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	u, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// GetUser возвращает пользователя по идентификатору.
func (s *Service) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.repo.GetUser(ctx, id)
}

// UpdateProfile обновляет профиль вызывающего пользователя.
func (s *Service) UpdateProfile(ctx context.Context, callerID string, p repository.UpdateProfileParams) (*model.User, error) {
	if p.BloodGroup != nil && !validation.IsValidBloodGroup(*p.BloodGroup) {
		return nil, fmt.Errorf("%w: unknown blood group %q", ErrValidation, *p.BloodGroup)
	}
	return s.repo.UpdateProfile(ctx, callerID, p)
}

// SearchDonors возвращает доноров по фильтрам. Вызывающий никогда не попадает в выдачу.
func (s *Service) SearchDonors(ctx context.Context, callerID string, f repository.DonorFilter) ([]model.User, error) {
	if f.BloodGroup != nil && !validation.IsValidBloodGroup(*f.BloodGroup) {
		return nil, fmt.Errorf("%w: unknown blood group %q", ErrValidation, *f.BloodGroup)
	}
	return s.repo.SearchDonors(ctx, callerID, f)
}

// Announcements возвращает уведомления, видимые вызывающему пользователю.
func (s *Service) Announcements(ctx context.Context, callerID string) ([]model.Announcement, error) {
	caller, err := s.repo.GetUser(ctx, callerID)
	if err != nil {
		return nil, err
	}
	return s.repo.AnnouncementsForUser(ctx, callerID, caller.BloodGroup)
}
