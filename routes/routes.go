package routes

import (
	"net/http"
	"time"

	"github.com/Dosada05/livematch/handlers"
	"github.com/Dosada05/livematch/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const requestTimeout = 15 * time.Second

type Options struct {
	JWTSecret      []byte
	AllowedOrigins []string
}

func SetupRoutes(
	router chi.Router,
	opts Options,
	tournamentHandler *handlers.TournamentHandler,
	webSocketHandler *handlers.WebSocketHandler,
	healthHandler *handlers.HealthHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", healthHandler.Healthz)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Websocket живёт дольше таймаута запросов, поэтому вне группы с Timeout.
	router.Get("/ws/tournaments", webSocketHandler.ServeWs)

	router.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(requestTimeout))

		r.Route("/tournaments", func(r chi.Router) {
			// Публичные маршруты для просмотра турниров
			r.Get("/", tournamentHandler.ListHandler)
			r.Get("/{tournamentID}", tournamentHandler.GetByIDHandler)

			// Изменения только для аутентифицированных пользователей
			r.Group(func(r chi.Router) {
				r.Use(middleware.Authenticate(opts.JWTSecret))

				r.Post("/", tournamentHandler.CreateHandler)
				r.Post("/{tournamentID}/participants", tournamentHandler.JoinHandler)
				r.Post("/{tournamentID}/events", tournamentHandler.ScheduleEventHandler)
				r.Post("/{tournamentID}/bracket", tournamentHandler.GenerateBracketHandler)
				r.Post("/{tournamentID}/logo", tournamentHandler.UploadLogoHandler)
			})
		})
	})
}
