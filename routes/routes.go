package routes

import (
	"github.com/Dosada05/esports-results/handlers"
	"github.com/Dosada05/esports-results/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
)

type Handlers struct {
	Submission *handlers.SubmissionHandler
	Dispute    *handlers.DisputeHandler
	Tournament *handlers.TournamentHandler
	Upload     *handlers.UploadHandler
	WebSocket  *handlers.WebSocketHandler
}

func SetupRoutes(h Handlers, auth *middleware.Authenticator) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Route("/tournaments/{tournamentID}", func(r chi.Router) {
		r.Get("/standings", h.Tournament.ListStandingsHandler)
		r.Get("/bracket", h.Tournament.GetBracketHandler)
		r.Get("/feed", h.WebSocket.TournamentFeedHandler)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(middleware.RequireRole("organizer", "admin"))

			r.Post("/standings/recompute", h.Tournament.RecomputeStandingsHandler)
		})
	})

	router.Route("/matches/{matchID}", func(r chi.Router) {
		r.Use(auth.Authenticate)

		r.Post("/submissions", h.Submission.CreateSubmissionHandler)
	})

	router.Route("/submissions/{submissionID}", func(r chi.Router) {
		r.Use(auth.Authenticate)

		r.Post("/response", h.Submission.OpponentRespondHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole("organizer", "admin"))

			r.Post("/verify", h.Submission.VerifySubmissionHandler)
			r.Get("/verify/dry-run", h.Submission.DryRunVerificationHandler)
			r.Post("/finalize", h.Submission.FinalizeSubmissionHandler)
		})
	})

	router.Route("/disputes/{disputeID}", func(r chi.Router) {
		r.Use(auth.Authenticate)

		r.Get("/", h.Dispute.GetDisputeHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole("organizer", "admin"))

			r.Post("/resolve", h.Dispute.ResolveDisputeHandler)
		})
	})

	router.Group(func(r chi.Router) {
		r.Use(auth.Authenticate)

		r.Post("/uploads/evidence", h.Upload.UploadEvidenceHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole("organizer", "admin"))

			r.Post("/submissions/sweep", h.Submission.SweepHandler)
		})
	})

	return router
}
