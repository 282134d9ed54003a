package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inferd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Health() types.HealthResponse
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}

	r.Post("/generate", generateHandler(svc))
	r.Get("/health", healthHandler(svc))

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// decodeGenerateRequest reads the body as a GenerateRequest. An empty body is
// an empty request; a missing prompt is "".
func decodeGenerateRequest(r *http.Request) (types.GenerateRequest, error) {
	var req types.GenerateRequest
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return req, fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, fmt.Errorf("invalid JSON body: %w", err)
	}
	return req, nil
}

// generateHandler godoc
//
//	@Summary	Generate a continuation of the prompt
//	@Accept		json
//	@Produce	json
//	@Param		request	body		types.GenerateRequest	true	"prompt"
//	@Success	200		{object}	types.GenerateResponse
//	@Failure	500		{object}	types.ErrorResponse
//	@Router		/generate [post]
func generateHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lvl := requestLogLevel(r)
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		req, err := decodeGenerateRequest(r)
		if err != nil {
			observeGeneration(err, time.Since(start))
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			logGenerate(r, lvl, http.StatusInternalServerError, start, 0, err)
			return
		}
		if lvl >= LevelDebug {
			zlog.Debug().Str("request_id", middleware.GetReqID(r.Context())).Str("prompt", req.Prompt).Msg("generate start")
		}

		// Join server base context with request context so shutdown cancels work too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		text, err := svc.Generate(ctx, req.Prompt)
		observeGeneration(err, time.Since(start))
		if err != nil {
			// If context was canceled (client disconnect), just return.
			if r.Context().Err() != nil {
				logGenerate(r, lvl, 0, start, len(req.Prompt), err)
				return
			}
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			logGenerate(r, lvl, http.StatusInternalServerError, start, len(req.Prompt), err)
			return
		}
		writeJSON(w, http.StatusOK, types.GenerateResponse{Response: text})
		logGenerate(r, lvl, http.StatusOK, start, len(req.Prompt), nil)
	}
}

// healthHandler godoc
//
//	@Summary	Liveness and compute device
//	@Produce	json
//	@Success	200	{object}	types.HealthResponse
//	@Router		/health [get]
func healthHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Health())
	}
}
