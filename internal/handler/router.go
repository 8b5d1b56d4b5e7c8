package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/mmeshcher/bloodlink-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса bloodlink.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/auth/user", h.CurrentUser)
			r.Patch("/users/me", h.UpdateProfile)
			r.Get("/donors", h.GetDonors)
			r.Get("/announcements", h.GetAnnouncements)

			r.Route("/requests", func(r chi.Router) {
				r.Post("/", h.CreateRequest)
				r.Get("/my", h.MyRequests)
				r.Get("/incoming", h.IncomingRequests)
				r.Get("/completed", h.CompletedDonations)
				r.Patch("/{id}/accept", h.AcceptRequest)
				r.Patch("/{id}/cancel", h.CancelRequest)
				r.Patch("/{id}/complete", h.CompleteRequest)
				r.Delete("/{id}", h.DeleteRequest)
			})

			r.Route("/hospital", func(r chi.Router) {
				r.Get("/stats", h.Stats)
				r.Get("/users", h.ListUsers)
				r.Post("/users", h.CreateUser)
				r.Patch("/users/{id}/verify", h.VerifyUser)
				r.Patch("/users/{id}/status", h.UpdateUserStatus)
				r.Delete("/users/{id}", h.DeleteUser)
				r.Get("/requests", h.HospitalRequests)
				r.Post("/requests", h.CreateRequestForUser)
				r.Get("/inventory", h.Inventory)
				r.Patch("/inventory", h.AdjustInventory)
				r.Post("/announcements", h.CreateAnnouncement)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
