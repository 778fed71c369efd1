// Package guard protects HTTP handlers with engine decisions for the
// authenticated identity.
package guard

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/valinor-ai/authority/internal/audit"
	"github.com/valinor-ai/authority/internal/auth"
	"github.com/valinor-ai/authority/internal/authority"
	"github.com/valinor-ai/authority/internal/platform/middleware"
)

// ResourceFunc derives the resource a request acts on.
type ResourceFunc func(r *http.Request) (authority.Resource, error)

// Type returns a ResourceFunc for an attribute-less resource of type typ.
func Type(typ string) ResourceFunc {
	res := authority.NewResource(typ, nil)
	return func(*http.Request) (authority.Resource, error) {
		return res, nil
	}
}

// Option configures guard middleware behavior.
type Option func(*config)

type config struct {
	audit  audit.Logger
	logger *slog.Logger
}

// WithAuditLogger records every denial with the request path and ID.
func WithAuditLogger(logger audit.Logger) Option {
	return func(c *config) {
		c.audit = logger
	}
}

// WithLogger sets the logger used for evaluation failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// RequirePermission returns middleware that lets a request through only when
// the engine allows the authenticated identity to perform action on the
// resource returned by resource.
func RequirePermission(engine *authority.Engine, action string, resource ResourceFunc, opts ...Option) func(http.Handler) http.Handler {
	c := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&c)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := auth.GetIdentity(r.Context())
			if identity == nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{
					"error": "authentication required",
				})
				return
			}

			res, err := resource(r)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{
					"error": err.Error(),
				})
				return
			}

			decision, err := engine.For(identity).Can(action, res)
			if err != nil {
				c.logger.Error("authorization check failed", "error", err, "action", action)
				writeJSON(w, http.StatusInternalServerError, map[string]string{
					"error": "authorization check failed",
				})
				return
			}

			if !decision.Allowed {
				if c.audit != nil {
					c.audit.Log(r.Context(), audit.Event{
						SubjectID:    identity.UserID,
						Action:       action,
						ResourceType: decision.ResourceType,
						Rule:         decision.RuleName,
						Reason:       decision.Reason,
						Source:       audit.SourceAPI,
						Metadata: map[string]any{
							audit.MetadataPath:      r.URL.Path,
							audit.MetadataRequestID: middleware.GetRequestID(r.Context()),
						},
					})
				}
				writeJSON(w, http.StatusForbidden, map[string]string{
					"error":  "forbidden",
					"reason": decision.Reason,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
