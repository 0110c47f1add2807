package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"quotedesk/go_backend/internal/app/config"
	"quotedesk/go_backend/internal/app/http/handlers"
	"quotedesk/go_backend/internal/app/http/middleware"
)

func NewRouter(cfg config.Config, h *handlers.Handlers, log logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(log))
	r.Use(middleware.CORS(cfg.CORSAllowOrigin))

	r.Get("/health", h.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.InternalAuth(cfg.InternalToken))

		r.Get("/quotations", h.ListQuotations)
		r.Post("/quotations", h.CreateQuotation)
		r.Get("/quotations/{serial}", h.GetQuotation)
		r.Put("/quotations/{serial}", h.EditQuotation)
		r.Post("/quotations/{serial}/document", h.PublishDocument)
		r.Put("/quotations/{serial}/status", h.SetStatus)
		r.Get("/customers", h.ListCustomers)
		r.Post("/assets", h.UploadAsset)
	})

	return r
}
