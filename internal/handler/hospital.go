package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/bloodlink-system/internal/model"
	"github.com/mmeshcher/bloodlink-system/internal/service"
)

// Stats возвращает агрегированные показатели платформы.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	caller, err := h.currentUser(r)
	if err != nil {
		h.writeError(w, err, "get stats error")
		return
	}

	stats, err := h.service.Stats(r.Context(), caller.Role)
	if err != nil {
		h.writeError(w, err, "get stats error")
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

// ListUsers возвращает всех пользователей платформы.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	caller, err := h.currentUser(r)
	if err != nil {
		h.writeError(w, err, "list users error")
		return
	}

	users, err := h.service.ListUsers(r.Context(), caller.Role)
	if err != nil {
		h.writeError(w, err, "list users error")
		return
	}

	h.writeJSON(w, http.StatusOK, toUserResponses(users))
}

type hospitalCreateUserRequest struct {
	Username   string  `json:"username"`
	Name       string  `json:"name"`
	Age        *int    `json:"age,omitempty"`
	BloodGroup string  `json:"bloodGroup"`
	Phone      *string `json:"phone,omitempty"`
	Location   string  `json:"location"`
	CanDonate  *bool   `json:"canDonate,omitempty"`
}

// CreateUser создаёт верифицированного донора от имени госпиталя.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	caller, err := h.currentUser(r)
	if err != nil {
		h.writeError(w, err, "create user error")
		return
	}

	var req hospitalCreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	u, err := h.service.CreateUserByHospital(r.Context(), caller.Role, service.HospitalCreateUserInput{
		Username:   req.Username,
		Name:       req.Name,
		Age:        req.Age,
		BloodGroup: req.BloodGroup,
		Phone:      req.Phone,
		Location:   req.Location,
		CanDonate:  req.CanDonate,
	})
	if err != nil {
		h.writeError(w, err, "create user error")
		return
	}

	h.writeJSON(w, http.StatusCreated, toUserResponse(u))
}

// VerifyUser помечает пользователя как верифицированного.
func (h *Handler) VerifyUser(w http.ResponseWriter, r *http.Request) {
	caller, err := h.currentUser(r)
	if err != nil {
		h.writeError(w, err, "verify user error")
		return
	}

	u, err := h.service.VerifyUser(r.Context(), caller.Role, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err, "verify user error")
		return
	}

	h.writeJSON(w, http.StatusOK, toUserResponse(u))
}

// DeleteUser удаляет неверифицированного пользователя.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	caller, err := h.currentUser(r)
	if err != nil {
		h.writeError(w, err, "delete user error")
		return
	}

	if err := h.service.DeleteUser(r.Context(), caller.Role, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err, "delete user error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type updateUserStatusRequest struct {
	CanDonate          *bool `json:"canDonate,omitempty"`
	AvailabilityStatus *bool `json:"availabilityStatus,omitempty"`
}

// UpdateUserStatus переопределяет флаги донорства пользователя.
func (h *Handler) UpdateUserStatus(w http.ResponseWriter, r *http.Request) {
	caller, err := h.currentUser(r)
	if err != nil {
		h.writeError(w, err, "update user status error")
		return
	}

	var req updateUserStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	u, err := h.service.UpdateUserStatus(r.Context(), caller.Role, chi.URLParam(r, "id"), req.CanDonate, req.AvailabilityStatus)
	if err != nil {
		h.writeError(w, err, "update user status error")
		return
	}

	h.writeJSON(w, http.StatusOK, toUserResponse(u))
}

// HospitalRequests возвращает заявки, направленные через госпиталь.
func (h *Handler) HospitalRequests(w http.ResponseWriter, r *http.Request) {
	caller, err := h.currentUser(r)
	if err != nil {
		h.writeError(w, err, "get hospital requests error")
		return
	}

	requests, err := h.service.HospitalRequests(r.Context(), caller.ID, caller.Role)
	if err != nil {
		h.writeError(w, err, "get hospital requests error")
		return
	}

	h.writeJSON(w, http.StatusOK, toRequestResponses(requests))
}

type hospitalCreateRequestRequest struct {
	RequestedByID string  `json:"requestedById"`
	HospitalID    string  `json:"hospitalId,omitempty"`
	BloodGroup    string  `json:"bloodGroup"`
	Location      string  `json:"location"`
	Priority      string  `json:"priority,omitempty"`
	UnitsNeeded   int     `json:"unitsNeeded,omitempty"`
	Notes         *string `json:"notes,omitempty"`
}

// CreateRequestForUser создаёт заявку от имени указанного пользователя (например,
// экстренную). Если госпиталь не указан, заявка направляется через вызывающего.
func (h *Handler) CreateRequestForUser(w http.ResponseWriter, r *http.Request) {
	caller, err := h.currentUser(r)
	if err != nil {
		h.writeError(w, err, "create request for user error")
		return
	}

	var req hospitalCreateRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.HospitalID == "" {
		req.HospitalID = caller.ID
	}

	created, err := h.service.CreateRequestForUser(r.Context(), caller.Role, req.RequestedByID, service.CreateRequestInput{
		HospitalID:  req.HospitalID,
		BloodGroup:  req.BloodGroup,
		Location:    req.Location,
		Priority:    req.Priority,
		UnitsNeeded: req.UnitsNeeded,
		Notes:       req.Notes,
	})
	if err != nil {
		h.writeError(w, err, "create request for user error")
		return
	}

	h.writeJSON(w, http.StatusCreated, toRequestResponse(created))
}

type stockResponse struct {
	ID             string `json:"id"`
	HospitalID     string `json:"hospitalId"`
	BloodGroup     string `json:"bloodGroup"`
	UnitsAvailable int    `json:"unitsAvailable"`
	LastUpdated    string `json:"lastUpdated"`
}

func toStockResponse(s *model.BloodStock) stockResponse {
	return stockResponse{
		ID:             s.ID,
		HospitalID:     s.HospitalID,
		BloodGroup:     s.BloodGroup,
		UnitsAvailable: s.UnitsAvailable,
		LastUpdated:    s.LastUpdated.Format(time.RFC3339),
	}
}

// Inventory возвращает запасы крови госпиталя по всем восьми группам.
func (h *Handler) Inventory(w http.ResponseWriter, r *http.Request) {
	caller, err := h.currentUser(r)
	if err != nil {
		h.writeError(w, err, "get inventory error")
		return
	}

	stock, err := h.service.Inventory(r.Context(), caller.ID, caller.Role)
	if err != nil {
		h.writeError(w, err, "get inventory error")
		return
	}

	resp := make([]stockResponse, 0, len(stock))
	for i := range stock {
		resp = append(resp, toStockResponse(&stock[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type adjustInventoryRequest struct {
	BloodGroup string `json:"bloodGroup"`
	Delta      int    `json:"delta"`
}

// AdjustInventory применяет знаковую дельту к запасу группы крови госпиталя.
func (h *Handler) AdjustInventory(w http.ResponseWriter, r *http.Request) {
	caller, err := h.currentUser(r)
	if err != nil {
		h.writeError(w, err, "adjust inventory error")
		return
	}

	var req adjustInventoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	stock, err := h.service.AdjustInventory(r.Context(), caller.ID, caller.Role, req.BloodGroup, req.Delta)
	if err != nil {
		h.writeError(w, err, "adjust inventory error")
		return
	}

	h.writeJSON(w, http.StatusOK, toStockResponse(stock))
}

type createAnnouncementRequest struct {
	Title            string  `json:"title"`
	Message          string  `json:"message"`
	TargetBloodGroup *string `json:"targetBloodGroup,omitempty"`
}

// CreateAnnouncement создаёт уведомление от имени госпиталя.
func (h *Handler) CreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	caller, err := h.currentUser(r)
	if err != nil {
		h.writeError(w, err, "create announcement error")
		return
	}

	var req createAnnouncementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	a, err := h.service.CreateAnnouncement(r.Context(), caller.ID, caller.Role, service.CreateAnnouncementInput{
		Title:            req.Title,
		Message:          req.Message,
		TargetBloodGroup: req.TargetBloodGroup,
	})
	if err != nil {
		h.writeError(w, err, "create announcement error")
		return
	}

	h.writeJSON(w, http.StatusCreated, toAnnouncementResponse(a))
}
