package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/anishko/Ekho/internal/http/handlers"
	"github.com/anishko/Ekho/internal/middleware"
)

// NewRouter builds the versioned API surface.
func NewRouter(app *handlers.App, countryLookup middleware.CountryLookup) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.Locale("en", countryLookup),
		middleware.CORS([]string{"http://localhost:3000"}),
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", app.Health)
		r.Get("/jobs/watch", app.JobsWatch)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(app.Cfg.RateLimitPerMin, time.Minute))

			r.Post("/generate-avatar", app.GenerateAvatar)
			r.Post("/generate-video", app.GenerateVideo)
			r.Get("/video-status/{job_id}", app.VideoStatus)
			r.Get("/user/{user_id}/jobs", app.UserJobs)
			r.Get("/user/{user_id}/trends", app.EmotionalTrends)

			r.Post("/chat", app.Chat)

			r.Post("/voice/clone", app.VoiceClone)
			r.Post("/voice/speech", app.VoiceSpeech)
		})
	})

	return r
}
