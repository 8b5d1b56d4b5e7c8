// Package handler содержит HTTP-обработчики API сервиса bloodlink.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/bloodlink-system/internal/middleware"
	"github.com/mmeshcher/bloodlink-system/internal/model"
	"github.com/mmeshcher/bloodlink-system/internal/repository"
	"github.com/mmeshcher/bloodlink-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Register(ctx context.Context, in service.RegisterInput) (*model.User, error)
	Authenticate(ctx context.Context, username, password string) (*model.User, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	UpdateProfile(ctx context.Context, callerID string, p repository.UpdateProfileParams) (*model.User, error)
	SearchDonors(ctx context.Context, callerID string, f repository.DonorFilter) ([]model.User, error)
	Announcements(ctx context.Context, callerID string) ([]model.Announcement, error)

	CreateRequest(ctx context.Context, requesterID string, in service.CreateRequestInput) (*model.BloodRequest, error)
	CreateRequestForUser(ctx context.Context, callerRole model.Role, requesterID string, in service.CreateRequestInput) (*model.BloodRequest, error)
	MyRequests(ctx context.Context, callerID string) ([]model.BloodRequest, error)
	IncomingRequests(ctx context.Context, callerID string) ([]model.BloodRequest, error)
	CompletedDonations(ctx context.Context, callerID string) ([]model.BloodRequest, error)
	AcceptRequest(ctx context.Context, requestID, donorID string) (*model.BloodRequest, error)
	CancelRequest(ctx context.Context, requestID string) (*model.BloodRequest, error)
	CompleteRequest(ctx context.Context, requestID string) (*model.BloodRequest, error)
	DeleteRequest(ctx context.Context, requestID, callerID string, callerRole model.Role) error

	ListUsers(ctx context.Context, callerRole model.Role) ([]model.User, error)
	CreateUserByHospital(ctx context.Context, callerRole model.Role, in service.HospitalCreateUserInput) (*model.User, error)
	VerifyUser(ctx context.Context, callerRole model.Role, userID string) (*model.User, error)
	DeleteUser(ctx context.Context, callerRole model.Role, userID string) error
	UpdateUserStatus(ctx context.Context, callerRole model.Role, userID string, canDonate, availabilityStatus *bool) (*model.User, error)
	Stats(ctx context.Context, callerRole model.Role) (*model.Stats, error)
	HospitalRequests(ctx context.Context, callerID string, callerRole model.Role) ([]model.BloodRequest, error)
	Inventory(ctx context.Context, callerID string, callerRole model.Role) ([]model.BloodStock, error)
	AdjustInventory(ctx context.Context, callerID string, callerRole model.Role, bloodGroup string, delta int) (*model.BloodStock, error)
	CreateAnnouncement(ctx context.Context, callerID string, callerRole model.Role, in service.CreateAnnouncementInput) (*model.Announcement, error)
}

// Handler реализует HTTP-обработчики API сервиса bloodlink.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

var errUnauthorized = errors.New("unauthorized")

// currentUser возвращает аутентифицированного пользователя текущего запроса.
func (h *Handler) currentUser(r *http.Request) (*model.User, error) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		return nil, errUnauthorized
	}

	u, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errUnauthorized
		}
		return nil, err
	}
	return u, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

// writeError транслирует виды ошибок сервиса в HTTP-статусы.
func (h *Handler) writeError(w http.ResponseWriter, err error, logMsg string) {
	var status int
	switch {
	case errors.Is(err, errUnauthorized), errors.Is(err, service.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repository.ErrUserExists),
		errors.Is(err, repository.ErrRequestNotPending),
		errors.Is(err, repository.ErrRequestNotAccepted):
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
		h.logger.Error(logMsg, zap.Error(err))
	}

	http.Error(w, http.StatusText(status), status)
}

type userResponse struct {
	ID                 string  `json:"id"`
	Username           string  `json:"username"`
	Role               string  `json:"role"`
	Name               string  `json:"name"`
	Age                *int    `json:"age,omitempty"`
	BloodGroup         *string `json:"bloodGroup"`
	Phone              *string `json:"phone,omitempty"`
	Location           *string `json:"location,omitempty"`
	CanDonate          bool    `json:"canDonate"`
	AvailabilityStatus bool    `json:"availabilityStatus"`
	DonationCount      int     `json:"donationCount"`
	LastDonationDate   *string `json:"lastDonationDate,omitempty"`
	IsVerified         bool    `json:"isVerified"`
	CreatedByHospital  bool    `json:"createdByHospital"`
	IDDocumentURL      *string `json:"idDocumentUrl,omitempty"`
	CreatedAt          string  `json:"createdAt"`
}

func toUserResponse(u *model.User) userResponse {
	resp := userResponse{
		ID:                 u.ID,
		Username:           u.Username,
		Role:               string(u.Role),
		Name:               u.Name,
		Age:                u.Age,
		BloodGroup:         u.BloodGroup,
		Phone:              u.Phone,
		Location:           u.Location,
		CanDonate:          u.CanDonate,
		AvailabilityStatus: u.AvailabilityStatus,
		DonationCount:      u.DonationCount,
		IsVerified:         u.IsVerified,
		CreatedByHospital:  u.CreatedByHospital,
		IDDocumentURL:      u.IDDocumentURL,
		CreatedAt:          u.CreatedAt.Format(time.RFC3339),
	}
	if u.LastDonationDate != nil {
		d := u.LastDonationDate.Format(time.RFC3339)
		resp.LastDonationDate = &d
	}
	return resp
}

func toUserResponses(users []model.User) []userResponse {
	resp := make([]userResponse, 0, len(users))
	for i := range users {
		resp = append(resp, toUserResponse(&users[i]))
	}
	return resp
}

type registerRequest struct {
	Username      string  `json:"username"`
	Password      string  `json:"password"`
	Name          string  `json:"name"`
	Age           *int    `json:"age,omitempty"`
	BloodGroup    *string `json:"bloodGroup,omitempty"`
	Phone         *string `json:"phone,omitempty"`
	Location      *string `json:"location,omitempty"`
	CanDonate     bool    `json:"canDonate"`
	IDDocumentURL *string `json:"idDocumentUrl,omitempty"`
}

// Register обрабатывает самостоятельную регистрацию донора/реципиента.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	u, err := h.service.Register(r.Context(), service.RegisterInput{
		Username:      req.Username,
		Password:      req.Password,
		Name:          req.Name,
		Age:           req.Age,
		BloodGroup:    req.BloodGroup,
		Phone:         req.Phone,
		Location:      req.Location,
		CanDonate:     req.CanDonate,
		IDDocumentURL: req.IDDocumentURL,
	})
	if err != nil {
		h.writeError(w, err, "register user error")
		return
	}

	h.authMiddleware.SetAuthCookie(w, u.ID)
	h.writeJSON(w, http.StatusCreated, toUserResponse(u))
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	u, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, err, "login user error")
		return
	}

	h.authMiddleware.SetAuthCookie(w, u.ID)
	h.writeJSON(w, http.StatusOK, toUserResponse(u))
}

// Logout сбрасывает cookie авторизации.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusOK)
}

// CurrentUser возвращает профиль текущего пользователя.
func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.currentUser(r)
	if err != nil {
		h.writeError(w, err, "get current user error")
		return
	}

	h.writeJSON(w, http.StatusOK, toUserResponse(u))
}

type updateProfileRequest struct {
	Name               *string `json:"name,omitempty"`
	Age                *int    `json:"age,omitempty"`
	BloodGroup         *string `json:"bloodGroup,omitempty"`
	Phone              *string `json:"phone,omitempty"`
	Location           *string `json:"location,omitempty"`
	CanDonate          *bool   `json:"canDonate,omitempty"`
	AvailabilityStatus *bool   `json:"availabilityStatus,omitempty"`
}

// UpdateProfile обновляет профиль текущего пользователя.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	u, err := h.service.UpdateProfile(r.Context(), userID, repository.UpdateProfileParams{
		Name:               req.Name,
		Age:                req.Age,
		BloodGroup:         req.BloodGroup,
		Phone:              req.Phone,
		Location:           req.Location,
		CanDonate:          req.CanDonate,
		AvailabilityStatus: req.AvailabilityStatus,
	})
	if err != nil {
		h.writeError(w, err, "update profile error")
		return
	}

	h.writeJSON(w, http.StatusOK, toUserResponse(u))
}

// GetDonors возвращает доноров по фильтрам из query-параметров.
func (h *Handler) GetDonors(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var f repository.DonorFilter
	if bg := r.URL.Query().Get("bloodGroup"); bg != "" && bg != "all" {
		f.BloodGroup = &bg
	}
	if loc := r.URL.Query().Get("location"); loc != "" {
		f.Location = &loc
	}
	f.OnlyAvailable = r.URL.Query().Get("available") == "true"

	donors, err := h.service.SearchDonors(r.Context(), userID, f)
	if err != nil {
		h.writeError(w, err, "search donors error")
		return
	}

	h.writeJSON(w, http.StatusOK, toUserResponses(donors))
}

type announcementResponse struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	Message          string  `json:"message"`
	TargetBloodGroup *string `json:"targetBloodGroup"`
	TargetUserID     *string `json:"targetUserId"`
	CreatedBy        string  `json:"createdBy"`
	CreatorName      string  `json:"creatorName,omitempty"`
	RequestID        *string `json:"requestId"`
	CreatedAt        string  `json:"createdAt"`
}

func toAnnouncementResponse(a *model.Announcement) announcementResponse {
	return announcementResponse{
		ID:               a.ID,
		Title:            a.Title,
		Message:          a.Message,
		TargetBloodGroup: a.TargetBloodGroup,
		TargetUserID:     a.TargetUserID,
		CreatedBy:        a.CreatedBy,
		CreatorName:      a.CreatorName,
		RequestID:        a.RequestID,
		CreatedAt:        a.CreatedAt.Format(time.RFC3339),
	}
}

// GetAnnouncements возвращает уведомления, видимые текущему пользователю.
func (h *Handler) GetAnnouncements(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	announcements, err := h.service.Announcements(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "get announcements error")
		return
	}

	resp := make([]announcementResponse, 0, len(announcements))
	for i := range announcements {
		resp = append(resp, toAnnouncementResponse(&announcements[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}
