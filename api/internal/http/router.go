package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reframedb/reframe/api/internal/repository"
	"github.com/reframedb/reframe/api/internal/service/auth"
	datasetsvc "github.com/reframedb/reframe/api/internal/service/dataset"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux      *mux.Router
	handler  http.Handler
	logger   *slog.Logger
	auth     auth.Service
	datasets datasetsvc.Service
	limiter  RateLimiter
	metrics  *routerMetrics
	dbHealth func(context.Context) error
}

// Options carries the optional router dependencies.
type Options struct {
	Limiter     RateLimiter
	FrontendURL string
	DBHealth    func(context.Context) error
	Registerer  prometheus.Registerer
	Gatherer    prometheus.Gatherer
}

const (
	rateWindowDefault  = time.Minute
	rateLimitRegister  = 5
	rateLimitLogin     = 12
	healthCheckTimeout = 2 * time.Second
	requestIDHeader    = "X-Request-ID"
)

// NewRouter assembles the routing table.
func NewRouter(logger *slog.Logger, authSvc auth.Service, datasets datasetsvc.Service, opts Options) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		mux:      mux.NewRouter(),
		logger:   logger,
		auth:     authSvc,
		datasets: datasets,
		limiter:  opts.Limiter,
		metrics:  newRouterMetrics(opts.Registerer),
		dbHealth: opts.DBHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.register(gatherer)

	r.handler = r.mux
	if origin := strings.TrimSpace(opts.FrontendURL); origin != "" {
		r.handler = handlers.CORS(
			handlers.AllowedOrigins([]string{origin}),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Authorization", "Content-Type", requestIDHeader}),
			handlers.ExposedHeaders([]string{requestIDHeader}),
			handlers.AllowCredentials(),
		)(r.mux)
	}
	return r
}

// ServeHTTP delegates to the underlying handler chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register(gatherer prometheus.Gatherer) {
	routes := []struct {
		method  string
		path    string
		handler http.HandlerFunc
	}{
		{http.MethodPost, "/auth/register", r.withRateLimit("register", rateLimitRegister, rateWindowDefault, r.handleRegister)},
		{http.MethodPost, "/auth/login", r.withRateLimit("login", rateLimitLogin, rateWindowDefault, r.handleLogin)},
		{http.MethodGet, "/auth/status", r.requireAuth(http.StatusUnauthorized, r.handleStatus)},
		{http.MethodPost, "/auth/logout", r.requireAuth(http.StatusForbidden, r.handleLogout)},
		{http.MethodGet, "/assaydata", r.requireAuth(http.StatusUnauthorized, r.handleAssayData)},
		{http.MethodGet, "/gvk_data", r.requireAuth(http.StatusUnauthorized, r.handleGVKData)},
		{http.MethodGet, "/healthz", r.handleHealthz},
	}
	for _, rt := range routes {
		r.mux.HandleFunc(rt.path, r.audit(rt.path, rt.handler)).Methods(rt.method)
	}
	r.mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	r.mux.NotFoundHandler = r.audit("unmatched", func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found.")
	})
	r.mux.MethodNotAllowedHandler = r.audit("unmatched", func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
	})
}

type credentialsPayload struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	RecaptchaToken string `json:"recaptcha_token"`
}

func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	var payload credentialsPayload
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}
	_, token, err := r.auth.Register(req.Context(), payload.Email, payload.Password, payload.RecaptchaToken)
	switch {
	case err == nil:
		writeMessage(w, http.StatusCreated, "Successfully registered.", map[string]any{"auth_token": token})
	case errors.Is(err, auth.ErrCaptchaRejected):
		writeError(w, http.StatusUnauthorized, "ReCaptcha token could not be verified!")
	case errors.Is(err, auth.ErrCaptchaUnavailable):
		r.logger.Warn("captcha verification failed", "error", err)
		writeError(w, http.StatusUnauthorized, "Some error occurred verifying ReCaptcha")
	case errors.Is(err, auth.ErrUserExists):
		writeError(w, http.StatusAccepted, "User already exists. Please Log in.")
	case errors.Is(err, auth.ErrCredentialsRequired):
		writeError(w, http.StatusUnauthorized, msgSomeErrorOccurs)
	default:
		r.logger.Error("register failed", "error", err)
		writeError(w, http.StatusUnauthorized, msgSomeErrorOccurs)
	}
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	var payload credentialsPayload
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}
	_, token, err := r.auth.Login(req.Context(), payload.Email, payload.Password)
	switch {
	case err == nil:
		writeMessage(w, http.StatusOK, "Successfully logged in.", map[string]any{"auth_token": token})
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusNotFound, "User does not exist.")
	default:
		r.logger.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgTryAgain)
	}
}

func (r *Router) handleStatus(w http.ResponseWriter, req *http.Request) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for status", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, msgTryAgain)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": statusSuccess,
		"data": map[string]any{
			"user_id":       info.User.ID,
			"email":         info.User.Email,
			"admin":         info.User.Admin,
			"registered_on": info.User.RegisteredOn.UTC().Format(http.TimeFormat),
		},
	})
}

func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for logout", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, msgTryAgain)
		return
	}
	if err := r.auth.Logout(req.Context(), info.Token); err != nil {
		msg := msgSomeErrorOccurs
		if errors.Is(err, repository.ErrConflict) {
			msg = "Token already blacklisted."
		}
		r.logger.Warn("logout failed", "error", err, "user_id", info.User.ID)
		writeJSON(w, http.StatusOK, map[string]string{"status": statusFail, "message": msg})
		return
	}
	writeMessage(w, http.StatusOK, "Successfully logged out.", nil)
}

func (r *Router) handleAssayData(w http.ResponseWriter, req *http.Request) {
	qid, ok := requiredQuery(w, req, "qid")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, r.datasets.LookupAssay(qid))
}

func (r *Router) handleGVKData(w http.ResponseWriter, req *http.Request) {
	qid, ok := requiredQuery(w, req, "qid")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, r.datasets.LookupDrugProfile(qid))
}

func requiredQuery(w http.ResponseWriter, req *http.Request, name string) (string, bool) {
	query := req.URL.Query()
	if !query.Has(name) {
		writeError(w, http.StatusBadRequest, "Missing query parameter: "+name)
		return "", false
	}
	return query.Get(name), true
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

// audit assigns a request id, logs the request and records metrics.
func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		reqID := strings.TrimSpace(req.Header.Get(requestIDHeader))
		if reqID == "" {
			reqID = ulid.Make().String()
		}
		w.Header().Set(requestIDHeader, reqID)

		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.metrics.observe(req.Method, route, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
			"request_id", reqID,
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", info.User.ID)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

// clientIP prefers X-Forwarded-For and is only used for logging.
func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		if ip := strings.TrimSpace(strings.Split(forwarded, ",")[0]); ip != "" {
			return ip
		}
	}
	return remoteIP(req)
}

// remoteIP is the host part of the connection's peer address.
func remoteIP(req *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}
