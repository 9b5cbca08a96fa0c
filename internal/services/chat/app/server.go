package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/voxhall/voxhall/internal/platform/errors"
	"github.com/voxhall/voxhall/internal/platform/timeouts"
	"github.com/voxhall/voxhall/internal/services/chat/cache"
	"github.com/voxhall/voxhall/internal/services/chat/domain"
	"github.com/voxhall/voxhall/internal/services/chat/storage"
)

const tokenCookieName = "vx_token"

// Per-route fixed-window budgets, keyed by user.
const (
	channelWritesPerMinute = 30
	dismissalsPerMinute    = 120
	invitesPerMinute       = 10
	readsPerMinute         = 60
)

// Authenticator resolves a bearer token to a cached account projection.
type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (cache.AccountEntry, error)
}

// MemberVerifier checks server membership through the cached roster.
type MemberVerifier interface {
	Member(ctx context.Context, serverID string, userID string) (cache.MemberEntry, error)
}

// ChatService is the domain surface the transport exposes.
type ChatService interface {
	CreateChannel(ctx context.Context, input domain.CreateChannelInput) (domain.Channel, error)
	UpdateChannel(ctx context.Context, input domain.UpdateChannelInput) (domain.ChannelUpdatedEvent, error)
	DeleteChannel(ctx context.Context, input domain.DeleteChannelInput) error
	DismissNotification(ctx context.Context, userID string, channelID string, emit bool) error
	Mentions(ctx context.Context, userID string) ([]domain.Mention, error)
	LastSeen(ctx context.Context, userID string) (map[string]time.Time, error)
	CreateInvite(ctx context.Context, serverID string, createdBy string) (domain.Invite, error)
}

// ConnectionDirectory resolves which rooms a fresh connection belongs in.
type ConnectionDirectory interface {
	ListUserMemberships(ctx context.Context, userID string) ([]storage.MemberRecord, error)
	ListServerChannels(ctx context.Context, serverID string) ([]storage.ChannelRecord, error)
	GetServer(ctx context.Context, serverID string) (storage.ServerRecord, error)
}

// Deps bundles everything the transport needs. Hub doubles as the domain
// service's broadcaster, so callers wire the same instance into both.
type Deps struct {
	Service   ChatService
	Accounts  Authenticator
	Members   MemberVerifier
	Directory ConnectionDirectory
	Hub       *Hub
	Clock     func() time.Time
}

// Config defines the inputs for the chat transport boundary.
type Config struct {
	HTTPAddr          string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the chat HTTP/WebSocket process.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
}

type handler struct {
	service   ChatService
	accounts  Authenticator
	members   MemberVerifier
	directory ConnectionDirectory
	hub       *Hub

	channelWrites *rateLimiter
	dismissals    *rateLimiter
	invites       *rateLimiter
	reads         *rateLimiter
}

// NewHandler creates the chat routes.
func NewHandler(deps Deps) (http.Handler, error) {
	if deps.Service == nil {
		return nil, errors.New("chat service is required")
	}
	if deps.Accounts == nil {
		return nil, errors.New("account authenticator is required")
	}
	if deps.Members == nil {
		return nil, errors.New("member verifier is required")
	}
	if deps.Directory == nil {
		return nil, errors.New("connection directory is required")
	}
	if deps.Hub == nil {
		return nil, errors.New("hub is required")
	}

	h := &handler{
		service:       deps.Service,
		accounts:      deps.Accounts,
		members:       deps.Members,
		directory:     deps.Directory,
		hub:           deps.Hub,
		channelWrites: newRateLimiter(channelWritesPerMinute, time.Minute, deps.Clock),
		dismissals:    newRateLimiter(dismissalsPerMinute, time.Minute, deps.Clock),
		invites:       newRateLimiter(invitesPerMinute, time.Minute, deps.Clock),
		reads:         newRateLimiter(readsPerMinute, time.Minute, deps.Clock),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("GET /ws", h.websocketHandler())
	mux.Handle("POST /servers/{serverID}/channels", h.requireMember(h.channelWrites, h.createChannel))
	mux.Handle("PATCH /servers/{serverID}/channels/{channelID}", h.requireMember(h.channelWrites, h.updateChannel))
	mux.Handle("DELETE /servers/{serverID}/channels/{channelID}", h.requireMember(h.channelWrites, h.deleteChannel))
	mux.Handle("POST /servers/{serverID}/invites", h.requireMember(h.invites, h.createInvite))
	mux.Handle("POST /channels/{channelID}/dismiss", h.requireUser(h.dismissals, h.dismissNotification))
	mux.Handle("GET /mentions", h.requireUser(h.reads, h.mentions))
	mux.Handle("GET /last-seen", h.requireUser(h.reads, h.lastSeen))
	return mux, nil
}

func (h *handler) authenticate(r *http.Request) (cache.AccountEntry, error) {
	return h.accounts.Authenticate(r.Context(), bearerFromRequest(r))
}

func bearerFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	cookie, err := r.Cookie(tokenCookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}

// requireUser authenticates the caller and applies the route's rate budget.
func (h *handler) requireUser(limiter *rateLimiter, next func(w http.ResponseWriter, r *http.Request, account cache.AccountEntry)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, err := h.authenticate(r)
		if err != nil {
			writeError(w, err)
			return
		}
		if !limiter.allow(account.UserID) {
			writeError(w, apperrors.New(apperrors.CodeRateLimited, "rate limit exceeded"))
			return
		}
		next(w, r, account)
	})
}

// requireMember additionally checks the caller belongs to the path's server.
func (h *handler) requireMember(limiter *rateLimiter, next func(w http.ResponseWriter, r *http.Request, account cache.AccountEntry)) http.Handler {
	return h.requireUser(limiter, func(w http.ResponseWriter, r *http.Request, account cache.AccountEntry) {
		serverID := r.PathValue("serverID")
		if _, err := h.members.Member(r.Context(), serverID, account.UserID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, apperrors.New(apperrors.CodeServerMemberRequired, "server membership required"))
				return
			}
			writeError(w, err)
			return
		}
		next(w, r, account)
	})
}

type createChannelRequest struct {
	Name string `json:"name"`
}

func (h *handler) createChannel(w http.ResponseWriter, r *http.Request, account cache.AccountEntry) {
	var body createChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperrors.New(apperrors.CodeChannelNameEmpty, "invalid request body"))
		return
	}
	channel, err := h.service.CreateChannel(r.Context(), domain.CreateChannelInput{
		ServerID:  r.PathValue("serverID"),
		Name:      body.Name,
		CreatedBy: account.UserID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, channel)
}

type updateChannelRequest struct {
	Name        *string `json:"name,omitempty"`
	Permissions *int64  `json:"permissions,omitempty"`
}

func (h *handler) updateChannel(w http.ResponseWriter, r *http.Request, account cache.AccountEntry) {
	var body updateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperrors.New(apperrors.CodeChannelNameEmpty, "invalid request body"))
		return
	}
	event, err := h.service.UpdateChannel(r.Context(), domain.UpdateChannelInput{
		ServerID:    r.PathValue("serverID"),
		ChannelID:   r.PathValue("channelID"),
		Name:        body.Name,
		Permissions: body.Permissions,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (h *handler) deleteChannel(w http.ResponseWriter, r *http.Request, account cache.AccountEntry) {
	err := h.service.DeleteChannel(r.Context(), domain.DeleteChannelInput{
		ServerID:  r.PathValue("serverID"),
		ChannelID: r.PathValue("channelID"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) createInvite(w http.ResponseWriter, r *http.Request, account cache.AccountEntry) {
	invite, err := h.service.CreateInvite(r.Context(), r.PathValue("serverID"), account.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, invite)
}

func (h *handler) dismissNotification(w http.ResponseWriter, r *http.Request, account cache.AccountEntry) {
	err := h.service.DismissNotification(r.Context(), account.UserID, r.PathValue("channelID"), true)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type mentionsResponse struct {
	Mentions []domain.Mention `json:"mentions"`
}

func (h *handler) mentions(w http.ResponseWriter, r *http.Request, account cache.AccountEntry) {
	mentions, err := h.service.Mentions(r.Context(), account.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	if mentions == nil {
		mentions = []domain.Mention{}
	}
	writeJSON(w, http.StatusOK, mentionsResponse{Mentions: mentions})
}

type lastSeenResponse struct {
	LastSeen map[string]int64 `json:"last_seen"`
}

func (h *handler) lastSeen(w http.ResponseWriter, r *http.Request, account cache.AccountEntry) {
	markers, err := h.service.LastSeen(r.Context(), account.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	response := lastSeenResponse{LastSeen: make(map[string]int64, len(markers))}
	for channelID, at := range markers {
		response.LastSeen[channelID] = at.UTC().UnixMilli()
	}
	writeJSON(w, http.StatusOK, response)
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	body := errorBody{Code: string(code), Message: err.Error()}
	if code == apperrors.CodeUnknown {
		// Infrastructure failures never leak detail to callers.
		body.Message = "internal error"
		log.Printf("chat: request failed: %v", err)
	}
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		body.Details = domainErr.Metadata
	}
	writeJSON(w, code.HTTPStatus(), errorResponse{Error: body})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("chat: encode response: %v", err)
	}
}

// NewServer builds a configured chat server.
func NewServer(config Config, deps Deps) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	routes, err := NewHandler(deps)
	if err != nil {
		return nil, err
	}
	return &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer: &http.Server{
			Addr:              httpAddr,
			Handler:           routes,
			ReadHeaderTimeout: config.ReadHeaderTimeout,
		},
	}, nil
}

// Run creates and serves a chat server until the context ends.
func Run(ctx context.Context, config Config, deps Deps) error {
	server, err := NewServer(config, deps)
	if err != nil {
		return fmt.Errorf("init chat server: %w", err)
	}
	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve chat: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("chat server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("chat server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}
