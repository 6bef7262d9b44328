package routes

import (
	"net/http"

	"github.com/pulse-analytics/pulse/internal/app"
	"github.com/pulse-analytics/pulse/internal/handler"
	"github.com/pulse-analytics/pulse/internal/middleware"
	"github.com/pulse-analytics/pulse/internal/response"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	auth := handler.NewAuthHandler(app.AuthService, app.Validator)
	task := handler.NewTaskHandler(app.TaskService, app.Validator)
	feedback := handler.NewFeedbackHandler(app.FeedbackService, app.Validator)
	health := handler.NewHealthHandler(app.DB)

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /healthz", health.Health)
	mux.Handle("GET /metrics", app.Metrics.Handler())

	// Auth - Authentication flow (rate limited per client IP and path)
	limits := middleware.RateLimitOptions{
		Limiter:           app.AuthLimiter,
		Metrics:           app.Metrics,
		TrustProxyHeaders: app.Cfg.TrustProxyHeaders,
	}
	rateLimit := middleware.RateLimit(limits)

	mux.Handle("POST /auth/register", rateLimit(http.HandlerFunc(auth.Register)))
	mux.HandleFunc("GET /auth/verify", auth.VerifyEmail)
	mux.Handle("POST /auth/login", rateLimit(http.HandlerFunc(auth.Login)))
	mux.HandleFunc("POST /auth/refresh", auth.Refresh)
	mux.HandleFunc("POST /auth/logout", auth.Logout)
	// These answer identically whatever happens, throttled or not
	mux.Handle("POST /auth/resend-verification",
		middleware.QuietRateLimit(limits, handler.ResendVerificationAccepted)(http.HandlerFunc(auth.ResendVerification)))
	mux.Handle("POST /auth/forgot-password",
		middleware.QuietRateLimit(limits, handler.ForgotPasswordAccepted)(http.HandlerFunc(auth.ForgotPassword)))
	mux.Handle("POST /auth/reset-password", rateLimit(http.HandlerFunc(auth.ResetPassword)))

	// ============================================================================
	// PROTECTED ROUTES (bearer access token)
	// ============================================================================

	requireAuth := middleware.RequireAuth(app.AuthService)

	mux.Handle("GET /auth/me", requireAuth(http.HandlerFunc(auth.Me)))

	// Tasks
	mux.Handle("GET /tasks", requireAuth(http.HandlerFunc(task.List)))
	mux.Handle("POST /tasks", requireAuth(http.HandlerFunc(task.Create)))
	mux.Handle("GET /tasks/{id}", requireAuth(http.HandlerFunc(task.Get)))
	mux.Handle("DELETE /tasks/{id}", requireAuth(http.HandlerFunc(task.Delete)))
	mux.Handle("POST /tasks/{id}/complete", requireAuth(http.HandlerFunc(task.Complete)))

	// Feedback
	mux.Handle("GET /feedback", requireAuth(http.HandlerFunc(feedback.List)))
	mux.Handle("POST /feedback", requireAuth(http.HandlerFunc(feedback.Submit)))

	// ============================================================================
	// FALLBACK
	// ============================================================================

	// 404
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotFound, response.CodeNotFound, "Not found")
	})

	// Global middleware - executed in order (top to bottom)
	handler := middleware.Chain(
		mux,
		middleware.RequestID,
		middleware.RequestLogging,
		middleware.Metrics(app.Metrics), // Must wrap the mux directly to see the route pattern
	)

	return handler
}
