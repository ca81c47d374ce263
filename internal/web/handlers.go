package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/justestif/go-spotify-jukebox/internal/auth"
	"github.com/justestif/go-spotify-jukebox/internal/proxy"
)

const (
	stateCookieName = "oauth_state"
	stateCookieTTL  = 300 // seconds
	maxBodyBytes    = 1 << 20
)

// Handlers contains HTTP handlers for the web application.
type Handlers struct {
	store     *auth.CredentialStore
	exchanger *auth.Exchanger
	proxy     *proxy.Proxy
	templates *Templates
	logger    *log.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(store *auth.CredentialStore, exchanger *auth.Exchanger, p *proxy.Proxy, templates *Templates, logger *log.Logger) *Handlers {
	return &Handlers{
		store:     store,
		exchanger: exchanger,
		proxy:     p,
		templates: templates,
		logger:    logger,
	}
}

// Home handles the search page (GET /).
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	data := HomePageData{
		PageData: PageData{
			Title:       "Jukebox",
			CurrentPath: r.URL.Path,
		},
		Authenticated: h.store.IsAuthenticated(),
	}
	if cred, ok := h.store.Get(); ok {
		data.ConnectedSince = cred.ObtainedAt
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.Render(w, "home", data); err != nil {
		h.logger.Error("rendering home page", "err", err)
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
		return
	}
}

// Health reports liveness (GET /healthz).
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "ok")
}

// Login initiates the Spotify OAuth flow (GET /login).
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()

	// Store state in cookie for validation on callback
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   stateCookieTTL,
	})

	http.Redirect(w, r, h.exchanger.AuthURL(state), http.StatusTemporaryRedirect)
}

// Callback completes the OAuth flow (GET /callback) and answers in plain text.
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil {
		http.Error(w, "Missing state cookie, start again at /login", http.StatusBadRequest)
		return
	}

	query := r.URL.Query()
	if query.Get("state") != stateCookie.Value {
		http.Error(w, "State mismatch", http.StatusBadRequest)
		return
	}

	// Clear state cookie
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	if errMsg := query.Get("error"); errMsg != "" {
		h.logger.Warn("authorization denied", "error", errMsg)
		http.Error(w, fmt.Sprintf("Spotify auth error: %s", errMsg), http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		return
	}

	// The code is single-use; finish the exchange even if the browser goes away.
	if _, err := h.exchanger.ExchangeCode(context.WithoutCancel(r.Context()), code, ""); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, auth.ErrProviderRejected) {
			status = http.StatusUnauthorized
		}
		http.Error(w, fmt.Sprintf("Failed to obtain token: %v", err), status)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "Authentication successful. You can now use /api/search")
}

// statusResponse is the body of GET /api/status.
type statusResponse struct {
	Authenticated bool `json:"authenticated"`
}

// Status reports whether the server holds a credential (GET /api/status).
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Authenticated: h.store.IsAuthenticated()})
}

// Search proxies a track search (GET /api/search?q=).
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.proxy.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

// Devices proxies the playback device list (GET /api/devices).
func (h *Handlers) Devices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.proxy.ListDevices(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

// addRequest is the body of POST /api/add.
type addRequest struct {
	TrackURI string `json:"trackUri"`
}

type addResponse struct {
	Success bool `json:"success"`
}

// Add queues a track (POST /api/add).
func (h *Handlers) Add(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   string(proxy.KindInvalidArgument),
			Details: "body must be JSON of the form {\"trackUri\": \"spotify:track:...\"}",
		})
		return
	}

	if err := h.proxy.Enqueue(r.Context(), req.TrackURI); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, addResponse{Success: true})
}
