package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// API groups the handlers mounted under /api.
type API struct {
	Auth       *AuthHandler
	Topics     *TopicHandler
	Sessions   *SessionHandler
	Feedback   *FeedbackHandler
	Statistics *StatisticsHandler
	Health     *HealthHandler
}

// Mount registers every route on r. requireAuth guards the routes that need
// a signed-in user.
func (a API) Mount(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Route("/api", func(api chi.Router) {
		api.Get("/health", a.Health.Get)
		api.Post("/auth/signup", a.Auth.Signup)
		api.Post("/auth/login", a.Auth.Login)
		api.Get("/topics", a.Topics.List)
		api.Get("/topics/{id}", a.Topics.Get)
		api.Post("/ai/feedback", a.Feedback.Generate)

		api.Group(func(pr chi.Router) {
			pr.Use(requireAuth)
			pr.Post("/auth/logout", a.Auth.Logout)
			pr.Get("/auth/session", a.Auth.Session)

			pr.Get("/writing/sessions", a.Sessions.List)
			pr.Post("/writing/sessions", a.Sessions.Create)
			pr.Get("/writing/sessions/{id}", a.Sessions.Get)
			pr.Put("/writing/sessions/{id}", a.Sessions.Update)
			pr.Delete("/writing/sessions/{id}", a.Sessions.Delete)
			pr.Post("/writing/auto-save", a.Sessions.AutoSave)

			pr.Get("/feedback", a.Feedback.Get)
			pr.Post("/feedback", a.Feedback.Create)
			pr.Get("/statistics/user", a.Statistics.Get)
		})
	})
}
