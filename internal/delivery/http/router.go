package http

import (
	"log/slog"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"eventsettlement/internal/delivery/http/controllers"
	"eventsettlement/internal/delivery/http/middleware"
	"eventsettlement/internal/domain"
)

// Controllers groups the handlers mounted by NewRouter.
type Controllers struct {
	Registrations *controllers.RegistrationController
	Events        *controllers.EventController
	Jobs          *controllers.JobController
}

// NewRouter initializes the HTTP router with all application routes.
// Every API route requires a verified token, and the job triggers also need the
// admin role. Swagger is public.
func NewRouter(c Controllers, verifier domain.TokenVerifier, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	auth := middleware.RequireAuth(verifier, logger)
	adminOnly := middleware.RequireRole(domain.RoleAdmin, logger)

	// Registrations
	mux.HandleFunc("POST /registrations", auth(c.Registrations.Register))
	mux.HandleFunc("GET /registrations", auth(c.Registrations.ListRegistrations))
	mux.HandleFunc("POST /registrations/confirm/stripe", auth(c.Registrations.ConfirmStripe))
	mux.HandleFunc("POST /registrations/confirm/razorpay", auth(c.Registrations.ConfirmRazorpay))
	mux.HandleFunc("POST /registrations/unregister", auth(c.Registrations.Unregister))
	mux.HandleFunc("GET /attendee/registrations", auth(c.Registrations.ListMyRegistrations))

	// Events
	mux.HandleFunc("GET /events/{eventID}", auth(c.Events.GetEvent))
	mux.HandleFunc("DELETE /events/{eventID}", auth(c.Events.DeleteEvent))

	// Jobs
	mux.HandleFunc("POST /notifications/reminders/run", auth(adminOnly(c.Jobs.RunReminders)))
	mux.HandleFunc("POST /registrations/sweep/run", auth(adminOnly(c.Jobs.RunSweep)))

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}

// NewHandler wraps the router with CORS and request logging.
func NewHandler(mux http.Handler, allowedOrigins []string, logger *slog.Logger) http.Handler {
	return middleware.LoggingMiddleware(logger, middleware.CORS(allowedOrigins, mux))
}
