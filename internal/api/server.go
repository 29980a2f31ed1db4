// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cryptotracker/internal/logging"
	"github.com/cryptotracker/internal/models"
	"github.com/cryptotracker/internal/service"
	"github.com/cryptotracker/internal/types"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// Service interfaces for dependency injection and testing

// AuthServiceInterface defines the interface for auth service operations
type AuthServiceInterface interface {
	Register(ctx context.Context, input *service.RegisterInput) (*models.User, error)
	Login(ctx context.Context, username, password string) (*models.User, error)
	GenerateInviteCode(ctx context.Context, creatorID string) (*models.InviteCode, error)
	RevokeInviteCode(ctx context.Context, id string) error
	ListInviteCodes(ctx context.Context) ([]*models.InviteCode, error)
}

// AccountServiceInterface defines the interface for account service operations
type AccountServiceInterface interface {
	Create(ctx context.Context, userID, name string) (*models.Account, error)
	Get(ctx context.Context, userID, accountID string) (*models.Account, error)
	List(ctx context.Context, userID string) ([]*models.Account, error)
	Rename(ctx context.Context, userID, accountID, name string) error
	Delete(ctx context.Context, userID, accountID string) error
}

// AddressServiceInterface defines the interface for address service operations
type AddressServiceInterface interface {
	Add(ctx context.Context, userID string, input *service.AddAddressInput) (*models.UserAddress, error)
	ListByAccount(ctx context.Context, userID, accountID string) ([]*models.UserAddress, error)
	Update(ctx context.Context, userID, addressID string, input *service.UpdateAddressInput) (*models.UserAddress, error)
	Delete(ctx context.Context, userID, addressID string) error
}

// ValuationServiceInterface defines the interface for valuation service operations
type ValuationServiceInterface interface {
	PortfolioAt(ctx context.Context, userID string, date *time.Time) (*service.Portfolio, error)
	Statistics(ctx context.Context, userID string) (*service.Statistics, error)
	Rewards(ctx context.Context, userID string) (*service.Rewards, error)
	StakingDetail(ctx context.Context, userID string) (*service.StakingDetail, error)
	AccountValuations(ctx context.Context, userID string) ([]*service.AccountValuation, error)
	AddressValuations(ctx context.Context, userID string) ([]*service.AddressValuation, error)
	AddressDetail(ctx context.Context, userID, addressID string) (*service.AddressDetail, error)
	UserTotalValue(ctx context.Context, userID string) (decimal.Decimal, error)
}

// AdminServiceInterface defines the interface for admin service operations
type AdminServiceInterface interface {
	ListUsers(ctx context.Context) ([]*models.User, error)
	ToggleAdmin(ctx context.Context, actorID, targetID string) (*models.User, error)
}

// SessionStoreInterface defines the interface for session operations
type SessionStoreInterface interface {
	Create(ctx context.Context, userID string) (string, error)
	Get(ctx context.Context, token string) (string, error)
	Delete(ctx context.Context, token string) error
	SetJobGroup(ctx context.Context, token, groupID string) error
	GetJobGroup(ctx context.Context, token string) (string, error)
}

// SnapshotQueueInterface defines the interface for snapshot job queueing
type SnapshotQueueInterface interface {
	Enqueue(ctx context.Context, userID string) (string, error)
	Status(ctx context.Context, groupID string) (types.JobStatus, error)
}

// UserReader resolves user ids to users for the admin check
type UserReader interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Server represents the HTTP API server.
type Server struct {
	router           *mux.Router
	httpServer       *http.Server
	authService      AuthServiceInterface
	accountService   AccountServiceInterface
	addressService   AddressServiceInterface
	valuationService ValuationServiceInterface
	adminService     AdminServiceInterface
	sessions         SessionStoreInterface
	queue            SnapshotQueueInterface
	userReader       UserReader
	logger           *logging.Logger
	config           *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	RequestsPerSecond int
	Burst             int
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	authService AuthServiceInterface,
	accountService AccountServiceInterface,
	addressService AddressServiceInterface,
	valuationService ValuationServiceInterface,
	adminService AdminServiceInterface,
	sessions SessionStoreInterface,
	queue SnapshotQueueInterface,
	userReader UserReader,
	logger *logging.Logger,
) *Server {
	s := &Server{
		router:           mux.NewRouter(),
		authService:      authService,
		accountService:   accountService,
		addressService:   addressService,
		valuationService: valuationService,
		adminService:     adminService,
		sessions:         sessions,
		queue:            queue,
		userReader:       userReader,
		logger:           logger,
		config:           config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSecond, s.config.Burst)

	// Middleware order matters
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Public auth endpoints
	api.HandleFunc("/auth/signup", s.handleSignup).Methods("POST")
	api.HandleFunc("/auth/login", s.handleLogin).Methods("POST")

	// Authenticated endpoints
	authed := api.NewRoute().Subrouter()
	authed.Use(s.requireAuth)

	authed.HandleFunc("/auth/logout", s.handleLogout).Methods("POST")
	authed.HandleFunc("/auth/me", s.handleMe).Methods("GET")

	authed.HandleFunc("/accounts", s.handleCreateAccount).Methods("POST")
	authed.HandleFunc("/accounts", s.handleListAccounts).Methods("GET")
	authed.HandleFunc("/accounts/{id}", s.handleRenameAccount).Methods("PUT")
	authed.HandleFunc("/accounts/{id}", s.handleDeleteAccount).Methods("DELETE")
	authed.HandleFunc("/accounts/{id}/addresses", s.handleListAccountAddresses).Methods("GET")

	authed.HandleFunc("/addresses", s.handleAddAddress).Methods("POST")
	authed.HandleFunc("/addresses", s.handleListAddresses).Methods("GET")
	authed.HandleFunc("/addresses/{id}", s.handleGetAddress).Methods("GET")
	authed.HandleFunc("/addresses/{id}", s.handleUpdateAddress).Methods("PUT")
	authed.HandleFunc("/addresses/{id}", s.handleDeleteAddress).Methods("DELETE")

	authed.HandleFunc("/portfolio", s.handlePortfolio).Methods("GET")
	authed.HandleFunc("/portfolio/value", s.handleTotalValue).Methods("GET")
	authed.HandleFunc("/portfolio/statistics", s.handleStatistics).Methods("GET")
	authed.HandleFunc("/portfolio/rewards", s.handleRewards).Methods("GET")
	authed.HandleFunc("/portfolio/staking", s.handleStaking).Methods("GET")
	authed.HandleFunc("/portfolio/refresh", s.handleRefresh).Methods("POST")
	authed.HandleFunc("/portfolio/refresh/status", s.handleRefreshStatus).Methods("GET")

	// Admin endpoints
	admin := authed.PathPrefix("/admin").Subrouter()
	admin.Use(s.requireAdmin)

	admin.HandleFunc("/users", s.handleListUsers).Methods("GET")
	admin.HandleFunc("/users/{id}/toggle-admin", s.handleToggleAdmin).Methods("POST")
	admin.HandleFunc("/invites", s.handleGenerateInvite).Methods("POST")
	admin.HandleFunc("/invites", s.handleListInvites).Methods("GET")
	admin.HandleFunc("/invites/{id}", s.handleRevokeInvite).Methods("DELETE")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "cryptotracker",
	})
}

// Router exposes the configured router, mainly for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
