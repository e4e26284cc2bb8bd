package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/hazyhaar/playerdex/pkg/directory"
	"github.com/hazyhaar/playerdex/pkg/importer"
	"github.com/hazyhaar/playerdex/pkg/kit"
	"github.com/mark3labs/mcp-go/server"
)

// NewRouter returns an http.Handler with all directory API routes. A
// non-nil mcpSrv is mounted at /mcp.
func NewRouter(svc *Service, mcpSrv *server.MCPServer) http.Handler {
	mux := http.NewServeMux()
	h := &handler{svc: svc}

	mux.HandleFunc("GET /v1/players/search", h.handleSearch)
	mux.HandleFunc("POST /v1/directory/{version}/warm", h.handleWarm)
	mux.HandleFunc("GET /v1/directory/{version}/status", h.handleStatus)
	mux.HandleFunc("GET /v1/directory/{version}", h.handlePage)
	mux.HandleFunc("GET /v1/bundles/{version}", h.handleBundle)
	mux.HandleFunc("GET /v1/versions", h.handleVersions)
	mux.HandleFunc("GET /v1/health", h.handleHealth)
	if mcpSrv != nil {
		mux.Handle("/mcp", server.NewStreamableHTTPServer(mcpSrv))
	}

	return cors(requestID(mux))
}

type handler struct {
	svc *Service
}

// --- search ---

func (h *handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, ok := intParam(w, q.Get("limit"))
	if !ok {
		return
	}
	resp, err := h.svc.search(r.Context(), &searchReq{
		Query:   q.Get("q"),
		Version: q.Get("version"),
		Limit:   limit,
	})
	if err != nil {
		writeEndpointError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- warm / status ---

func (h *handler) handleWarm(w http.ResponseWriter, r *http.Request) {
	var wait time.Duration
	if v := r.URL.Query().Get("wait"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			writeError(w, http.StatusBadRequest, "invalid wait duration")
			return
		}
		wait = d
	}
	resp, err := h.svc.warm(r.Context(), &warmReq{Version: r.PathValue("version"), Wait: wait})
	if err != nil {
		writeEndpointError(w, err)
		return
	}
	code := http.StatusAccepted
	if st, ok := resp.(directory.LoadStatus); ok && st.Loaded {
		code = http.StatusOK
	}
	writeJSON(w, code, resp)
}

func (h *handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.status(r.Context(), &statusReq{Version: r.PathValue("version")})
	if err != nil {
		writeEndpointError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- directory pages and bundles ---

func (h *handler) handlePage(w http.ResponseWriter, r *http.Request) {
	if h.svc.cfg.Catalog == nil {
		writeError(w, http.StatusNotFound, "no catalog configured")
		return
	}
	q := r.URL.Query()
	limit, ok := intParam(w, q.Get("limit"))
	if !ok {
		return
	}
	page, err := h.svc.cfg.Catalog.FetchPage(r.Context(), r.PathValue("version"), limit, q.Get("next_token"))
	if errors.Is(err, importer.ErrBadToken) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.svc.logger.Error("catalog page", "version", r.PathValue("version"), "error", err)
		writeError(w, http.StatusInternalServerError, "catalog unavailable")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *handler) handleBundle(w http.ResponseWriter, r *http.Request) {
	if h.svc.cfg.Bundles == nil {
		writeError(w, http.StatusNotFound, "no bundles configured")
		return
	}
	data, err := h.svc.cfg.Bundles.ReadFile(r.PathValue("version"))
	if errors.Is(err, directory.ErrBundleNotFound) {
		writeError(w, http.StatusNotFound, "bundle not found")
		return
	}
	if err != nil {
		h.svc.logger.Error("read bundle", "version", r.PathValue("version"), "error", err)
		writeError(w, http.StatusInternalServerError, "bundle unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// --- versions ---

func (h *handler) handleVersions(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.versions(r.Context(), nil)
	if err != nil {
		writeEndpointError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- health ---

type healthResponse struct {
	Status string `json:"status"`
	Loaded int    `json:"loaded"`
	Names  int    `json:"names"`
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	for _, st := range h.svc.cfg.Cache.Versions() {
		if st.Loaded {
			resp.Loaded++
		}
		resp.Names += st.LoadedCount
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- helpers ---

// intParam parses an optional integer query value. It writes a 400 and
// returns false when v is malformed.
func intParam(w http.ResponseWriter, v string) (int, bool) {
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return 0, false
	}
	return n, true
}

func writeEndpointError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrBadRequest) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// requestID tags each request with an id, reusing the caller's
// X-Request-ID when present.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 64 {
			id = kit.NewRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := kit.WithTransport(r.Context(), "http")
		ctx = kit.WithRequestID(ctx, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// cors is a simple CORS middleware for browser-based clients.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
