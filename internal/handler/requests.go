package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/bloodlink-system/internal/middleware"
	"github.com/mmeshcher/bloodlink-system/internal/model"
	"github.com/mmeshcher/bloodlink-system/internal/service"
)

type requestResponse struct {
	ID             string  `json:"id"`
	RequestedByID  string  `json:"requestedById"`
	HospitalID     string  `json:"hospitalId"`
	BloodGroup     string  `json:"bloodGroup"`
	Location       string  `json:"location"`
	Priority       string  `json:"priority"`
	UnitsNeeded    int     `json:"unitsNeeded"`
	Notes          *string `json:"notes"`
	Status         string  `json:"status"`
	MatchedDonorID *string `json:"matchedDonorId"`
	CreatedAt      string  `json:"createdAt"`
	UpdatedAt      string  `json:"updatedAt"`
}

func toRequestResponse(req *model.BloodRequest) requestResponse {
	return requestResponse{
		ID:             req.ID,
		RequestedByID:  req.RequestedByID,
		HospitalID:     req.HospitalID,
		BloodGroup:     req.BloodGroup,
		Location:       req.Location,
		Priority:       string(req.Priority),
		UnitsNeeded:    req.UnitsNeeded,
		Notes:          req.Notes,
		Status:         string(req.Status),
		MatchedDonorID: req.MatchedDonorID,
		CreatedAt:      req.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      req.UpdatedAt.Format(time.RFC3339),
	}
}

func toRequestResponses(requests []model.BloodRequest) []requestResponse {
	resp := make([]requestResponse, 0, len(requests))
	for i := range requests {
		resp = append(resp, toRequestResponse(&requests[i]))
	}
	return resp
}

type createRequestRequest struct {
	HospitalID  string  `json:"hospitalId"`
	BloodGroup  string  `json:"bloodGroup"`
	Location    string  `json:"location"`
	Priority    string  `json:"priority,omitempty"`
	UnitsNeeded int     `json:"unitsNeeded,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

func (req createRequestRequest) toInput() service.CreateRequestInput {
	return service.CreateRequestInput{
		HospitalID:  req.HospitalID,
		BloodGroup:  req.BloodGroup,
		Location:    req.Location,
		Priority:    req.Priority,
		UnitsNeeded: req.UnitsNeeded,
		Notes:       req.Notes,
	}
}

// CreateRequest создаёт заявку на кровь от имени текущего пользователя.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	created, err := h.service.CreateRequest(r.Context(), userID, req.toInput())
	if err != nil {
		h.writeError(w, err, "create request error")
		return
	}

	h.writeJSON(w, http.StatusCreated, toRequestResponse(created))
}

// MyRequests возвращает заявки текущего пользователя.
func (h *Handler) MyRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	requests, err := h.service.MyRequests(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "get my requests error")
		return
	}

	h.writeJSON(w, http.StatusOK, toRequestResponses(requests))
}

// IncomingRequests возвращает ожидающие заявки, подходящие текущему донору.
func (h *Handler) IncomingRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	requests, err := h.service.IncomingRequests(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "get incoming requests error")
		return
	}

	h.writeJSON(w, http.StatusOK, toRequestResponses(requests))
}

// CompletedDonations возвращает завершённые донации текущего пользователя.
func (h *Handler) CompletedDonations(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	donations, err := h.service.CompletedDonations(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "get completed donations error")
		return
	}

	h.writeJSON(w, http.StatusOK, toRequestResponses(donations))
}

// AcceptRequest закрепляет текущего пользователя как донора ожидающей заявки.
func (h *Handler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	requestID := chi.URLParam(r, "id")

	req, err := h.service.AcceptRequest(r.Context(), requestID, userID)
	if err != nil {
		h.writeError(w, err, "accept request error")
		return
	}

	h.writeJSON(w, http.StatusOK, toRequestResponse(req))
}

// CancelRequest отменяет ожидающую заявку.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "id")

	req, err := h.service.CancelRequest(r.Context(), requestID)
	if err != nil {
		h.writeError(w, err, "cancel request error")
		return
	}

	h.writeJSON(w, http.StatusOK, toRequestResponse(req))
}

// CompleteRequest завершает принятую заявку.
func (h *Handler) CompleteRequest(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "id")

	req, err := h.service.CompleteRequest(r.Context(), requestID)
	if err != nil {
		h.writeError(w, err, "complete request error")
		return
	}

	h.writeJSON(w, http.StatusOK, toRequestResponse(req))
}

// DeleteRequest удаляет заявку. Доступно госпиталю либо автору заявки.
func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	caller, err := h.currentUser(r)
	if err != nil {
		h.writeError(w, err, "delete request error")
		return
	}

	requestID := chi.URLParam(r, "id")

	if err := h.service.DeleteRequest(r.Context(), requestID, caller.ID, caller.Role); err != nil {
		h.writeError(w, err, "delete request error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
