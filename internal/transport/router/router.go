package router

import (
	"github.com/go-chi/chi/v5"

	"github.com/trunov/audiohub/internal/transport/handler"
)

func NewRouter(h *handler.Handler) chi.Router {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/upload", h.Upload)
		r.Get("/health", h.Health)
	})

	return r
}
