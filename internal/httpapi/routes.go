package httpapi

import (
	"net/http"

	"github.com/DoyleJ11/operator-board/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func SetupRoutes(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.Healthz)
	r.Get("/ws", ws.Handler(s.hub, s.roster, s.opts.DefaultProfile, s.logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", s.Version)

		r.Route("/roster", func(r chi.Router) {
			r.Get("/", s.Roster)
			r.Get("/letters", s.Letters)
			r.Get("/jump/{letter}", s.Jump)
		})

		// The bare routes act on the default profile.
		r.Group(s.boardRoutes)
		r.Route("/profiles/{profile}", s.boardRoutes)
	})

	if s.opts.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.opts.StaticDir)))
	}
	return r
}

func (s *Server) boardRoutes(r chi.Router) {
	r.Get("/teams", s.GetTeams)
	r.Delete("/teams", s.ResetTeams)
	r.Put("/teams/{team}/slots/{slot}/operator", s.Assign)
	r.Put("/teams/{team}/slots/{slot}/equipment/{field}", s.SetEquipment)

	r.Post("/picker", s.OpenPicker)
	r.Get("/picker", s.QueryPicker)
	r.Post("/picker/select", s.SelectOperator)
	r.Delete("/picker", s.ClosePicker)
}
