package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/onyxservices/dispatch/internal/config"
	"github.com/onyxservices/dispatch/internal/contracts"
	"github.com/onyxservices/dispatch/internal/db"
	"github.com/onyxservices/dispatch/internal/roles"
	"github.com/onyxservices/dispatch/internal/rolesync"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// Store is the storage the handlers use directly.
type Store interface {
	GetUser(ctx context.Context, id string) (*db.User, error)
	RoleMappings(ctx context.Context) ([]roles.Mapping, error)
	CreateRoleMapping(ctx context.Context, m roles.Mapping) (*roles.Mapping, error)
	DeleteRoleMapping(ctx context.Context, id string) error
	SetRoleMappingAutoVerify(ctx context.Context, id string, autoVerify bool) (*roles.Mapping, error)
	ListUsers(ctx context.Context) ([]db.User, error)
	SetUserRole(ctx context.Context, id string, role roles.SystemRole, verified bool) (*db.User, error)
	Ping(ctx context.Context) error
}

type ContractService interface {
	Create(ctx context.Context, actor *db.User, in contracts.NewContract) (*db.Contract, error)
	List(ctx context.Context, status string) ([]db.Contract, error)
	Summary(ctx context.Context, contractID string) (*contracts.Summary, error)
	UpdateStatus(ctx context.Context, actor *db.User, contractID string, status contracts.Status) error
	UpdateTargetPayout(ctx context.Context, contractID string, amount float64) (*contracts.Summary, error)
	Delete(ctx context.Context, actor *db.User, contractID string) error
	AddParticipant(ctx context.Context, actor *db.User, contractID, userID, role string) (*contracts.Summary, error)
	RemoveParticipant(ctx context.Context, contractID, participantID string) (*contracts.Summary, error)
	SetShare(ctx context.Context, contractID, participantID string, share float64) (*contracts.Summary, error)
	ResetShare(ctx context.Context, contractID, participantID string) (*contracts.Summary, error)
	AddContribution(ctx context.Context, actor *db.User, contractID string, in contracts.NewContribution) (*db.Contribution, error)
	Contributions(ctx context.Context, contractID string) ([]db.Contribution, error)
}

type RoleSyncService interface {
	VerifyMember(ctx context.Context, discordID string) (*rolesync.Result, error)
	VerifyLogin(ctx context.Context, discordID, username string) (*db.User, error)
	SyncGuild(ctx context.Context) (*rolesync.Report, error)
}

type API struct {
	router      *mux.Router
	store       Store
	contracts   ContractService
	roleSync    RoleSyncService
	config      *config.Config
	oauthConfig *oauth2.Config
	jwtSecret   []byte
	validate    *requestValidator
	log         zerolog.Logger
	now         func() time.Time
}

func New(cfg *config.Config, store Store, contractSvc ContractService, roleSync RoleSyncService, log zerolog.Logger) *API {
	api := &API{
		router:    mux.NewRouter(),
		store:     store,
		contracts: contractSvc,
		roleSync:  roleSync,
		config:    cfg,
		jwtSecret: []byte(cfg.JWTSecret),
		validate:  newRequestValidator(),
		log:       log.With().Str("component", "api").Logger(),
		now:       time.Now,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.DiscordClientID,
			ClientSecret: cfg.DiscordClientSecret,
			RedirectURL:  cfg.DiscordRedirectURI,
			Scopes:       []string{"identify"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://discord.com/api/oauth2/authorize",
				TokenURL: "https://discord.com/api/oauth2/token",
			},
		},
	}

	api.setupRoutes()
	return api
}

func (a *API) setupRoutes() {
	a.router.HandleFunc("/healthz", a.handleHealth).Methods("GET")
	a.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Auth endpoints
	a.router.HandleFunc("/api/auth/login", a.handleLogin).Methods("GET")
	a.router.HandleFunc("/api/auth/callback", a.handleCallback).Methods("GET")
	a.router.HandleFunc("/api/auth/logout", a.handleLogout).Methods("POST")

	// Protected endpoints
	protected := a.router.PathPrefix("/api").Subrouter()
	protected.Use(a.authMiddleware)

	protected.HandleFunc("/me", a.handleMe).Methods("GET")
	protected.HandleFunc("/contracts", a.handleListContracts).Methods("GET")
	protected.HandleFunc("/contracts", a.handleCreateContract).Methods("POST")
	protected.HandleFunc("/contracts/{id}", a.handleGetContract).Methods("GET")
	protected.HandleFunc("/contracts/{id}", a.handleDeleteContract).Methods("DELETE")
	protected.HandleFunc("/contracts/{id}/status", a.handleUpdateStatus).Methods("PUT")
	protected.HandleFunc("/contracts/{id}/target-payout", a.handleUpdateTargetPayout).Methods("PUT")
	protected.HandleFunc("/contracts/{id}/contributions", a.handleListContributions).Methods("GET")
	protected.HandleFunc("/contracts/{id}/contributions", a.handleAddContribution).Methods("POST")
	protected.HandleFunc("/contracts/{id}/participants", a.handleAddParticipant).Methods("POST")
	protected.HandleFunc("/contracts/{id}/participants/{pid}", a.handleRemoveParticipant).Methods("DELETE")
	protected.HandleFunc("/contracts/{id}/participants/{pid}/share", a.handleSetShare).Methods("PUT")
	protected.HandleFunc("/contracts/{id}/participants/{pid}/reset", a.handleResetShare).Methods("POST")
	protected.HandleFunc("/roles/verify", a.handleVerifyRoles).Methods("POST")

	// Role management
	managers := protected.NewRoute().Subrouter()
	managers.Use(a.requireManager)

	managers.HandleFunc("/role-mappings", a.handleListRoleMappings).Methods("GET")
	managers.HandleFunc("/role-mappings", a.handleCreateRoleMapping).Methods("POST")
	managers.HandleFunc("/role-mappings/{id}", a.handleUpdateRoleMapping).Methods("PATCH")
	managers.HandleFunc("/role-mappings/{id}", a.handleDeleteRoleMapping).Methods("DELETE")
	managers.HandleFunc("/roles/sync", a.handleSyncRoles).Methods("POST")
	managers.HandleFunc("/users", a.handleListUsers).Methods("GET")
	managers.HandleFunc("/users/{id}/role", a.handleSetUserRole).Methods("PUT")
}

// Handler is the router wrapped with CORS.
func (a *API) Handler() http.Handler {
	// Note: When AllowedOrigins is "*", AllowCredentials must be false
	corsOptions := cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}
	if a.config.SiteURL != "" {
		corsOptions.AllowedOrigins = []string{a.config.SiteURL}
		corsOptions.AllowCredentials = true
	}
	return cors.New(corsOptions).Handler(a.router)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (a *API) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.config.WebBind,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", "http://"+a.config.WebBind).Msg("API server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
