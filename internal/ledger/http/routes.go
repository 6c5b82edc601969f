package ledgerhttp

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Request headers understood by the ledger routes.
const (
	HeaderWorkspaceID = "X-Workspace-ID"
	HeaderDivisionID  = "X-Division-ID"
)

const defaultExportRateLimit = 20

// MountRoutes registers ledger console endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limit := h.exportRateLimit
	if limit <= 0 {
		limit = defaultExportRateLimit
	}
	limiter := httprate.Limit(limit, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.RespondError(w, httpx.Wrap(httpx.ErrTooManyRequest, errors.New("export rate limit exceeded")))
		}),
	)

	r.Route("/ledger", func(lr chi.Router) {
		lr.Use(workspaceMiddleware)
		lr.Get("/customers", h.handleCustomers)
		lr.Post("/reports", h.handleGenerate)
		lr.Get("/reports/current", h.handleView)
		lr.Post("/reports/current/sort", h.handleSort)
		lr.Delete("/reports/current", h.handleReset)
		lr.Group(func(gr chi.Router) {
			gr.Use(limiter)
			gr.Get("/reports/current/export", h.handleExport)
			gr.Get("/customers/{customerID}/pdf", h.handlePDF)
		})
	})
}

// workspaceMiddleware resolves the console workspace and division. A missing
// workspace id is generated and echoed so the client can reuse it.
func workspaceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderWorkspaceID))
		if id == "" {
			id = ledger.NewWorkspaceID()
		}
		division := strings.TrimSpace(r.Header.Get(HeaderDivisionID))
		if division == "" {
			division = strings.TrimSpace(r.URL.Query().Get("divisionId"))
		}
		w.Header().Set(HeaderWorkspaceID, id)
		ctx := shared.ContextWithWorkspace(r.Context(), shared.Workspace{ID: id, DivisionID: division})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func workspaceFrom(r *http.Request) shared.Workspace {
	ws, _ := shared.WorkspaceFromContext(r.Context())
	return ws
}

// rateLimitKey keys on the client address; workspace ids are client chosen.
func rateLimitKey(r *http.Request) (string, error) {
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
