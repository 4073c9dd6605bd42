package pdr

import (
	"github.com/go-chi/chi/v5"

	domain "pdr/internal/domain/pdr"
	"pdr/internal/transport/http/middleware"
)

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Get("/company-values", h.CompanyValues)

		r.Route("/pdrs", func(r chi.Router) {
			r.With(middleware.RequireRole(string(domain.RoleEmployee))).Post("/", h.Create)
			r.Get("/", h.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.Get)
				r.Put("/current-step", h.SetCurrentStep)

				r.Post("/goals", h.AddGoal)
				r.Put("/goals/{goalId}", h.UpdateGoal)
				r.Delete("/goals/{goalId}", h.DeleteGoal)
				r.Put("/goals/ratings", h.SaveGoalRatings)

				r.Post("/behaviors", h.AddBehavior)
				r.Put("/behaviors/{behaviorId}", h.UpdateBehavior)
				r.Delete("/behaviors/{behaviorId}", h.DeleteBehavior)
				r.Put("/behaviors/ratings", h.SaveBehaviorRatings)

				r.Put("/mid-year", h.WriteMidYear)
				r.Put("/end-year", h.WriteEndYear)

				// Lifecycle transitions. Role and ownership checks live in the
				// state machine, not the router.
				r.Post("/submit", h.Submit)
				r.Post("/review", h.Review)
				r.Post("/book-meeting", h.BookMeeting)
				r.Post("/mid-year/submit", h.SubmitMidYear)
				r.Post("/mid-year/approve", h.ApproveMidYear)
				r.Post("/end-year/submit", h.SubmitEndYear)
				r.Post("/complete", h.Complete)
				r.Post("/calibrate", h.Calibrate)
			})
		})
	})
}
