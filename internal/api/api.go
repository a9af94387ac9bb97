package api

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/oauth2"

	"github.com/tsubakiyo/warikan/internal/config"
	"github.com/tsubakiyo/warikan/internal/db"
	"github.com/tsubakiyo/warikan/internal/gateway"
	"github.com/tsubakiyo/warikan/internal/split"
)

// Store is the persistence surface the handlers need.
type Store interface {
	CreateSession(ctx context.Context, creatorID string, groupID *string) (*db.Session, error)
	GetSession(ctx context.Context, sessionID string) (*db.Session, error)
	TryBeginProcessing(ctx context.Context, sessionID string) (bool, error)
	EndProcessing(ctx context.Context, sessionID string) error
	UpsertSettlement(ctx context.Context, snapshot *split.Snapshot) error
	SettlementBySession(ctx context.Context, sessionID string) (*split.Snapshot, error)
	SettlementsByParticipant(ctx context.Context, uniqueID string, limit int) ([]db.ParticipantSettlement, error)
}

// ReceiptParser is the model gateway surface.
type ReceiptParser interface {
	ParseReceipt(ctx context.Context, image []byte, mimeType, languageHint, contextLabel string) gateway.ParseResult
}

// Directory resolves participant identities from the external directory
// collaborator.
type Directory interface {
	Lookup(ctx context.Context, uniqueID string) (split.ParticipantInfo, error)
}

// EchoDirectory is the fallback directory: the id doubles as the display
// name.
type EchoDirectory struct{}

func (EchoDirectory) Lookup(_ context.Context, uniqueID string) (split.ParticipantInfo, error) {
	return split.ParticipantInfo{UniqueID: uniqueID, Username: uniqueID}, nil
}

type API struct {
	router      *mux.Router
	store       Store
	parser      ReceiptParser
	directory   Directory
	config      *config.Config
	oauthConfig *oauth2.Config
	jwtSecret   []byte
}

func New(cfg *config.Config, store Store, parser ReceiptParser, directory Directory) *API {
	if directory == nil {
		directory = EchoDirectory{}
	}
	api := &API{
		router:    mux.NewRouter(),
		store:     store,
		parser:    parser,
		directory: directory,
		config:    cfg,
		jwtSecret: []byte(cfg.JWTSecret),
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			RedirectURL:  cfg.OAuthRedirectURI,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.OAuthAuthURL,
				TokenURL: cfg.OAuthTokenURL,
			},
		},
	}

	api.setupRoutes()
	return api
}

func (a *API) setupRoutes() {
	// Auth endpoints
	a.router.HandleFunc("/api/auth/login", a.handleLogin).Methods("GET")
	a.router.HandleFunc("/api/auth/callback", a.handleCallback).Methods("GET")
	a.router.HandleFunc("/api/auth/logout", a.handleLogout).Methods("POST")

	// Protected endpoints
	protected := a.router.PathPrefix("/api").Subrouter()
	protected.Use(a.authMiddleware)

	protected.HandleFunc("/sessions", a.handleCreateSession).Methods("POST")
	protected.HandleFunc("/sessions/{session_id}/scan", a.handleScan).Methods("POST")
	protected.HandleFunc("/sessions/{session_id}/finalize", a.handleFinalize).Methods("POST")
	protected.HandleFunc("/sessions/{session_id}/settlement", a.handleGetSettlement).Methods("GET")
	protected.HandleFunc("/me/settlements", a.handleMySettlements).Methods("GET")
}

func (a *API) Start() error {
	corsOptions := cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}

	handler := cors.New(corsOptions).Handler(a.router)

	log.Printf("API server listening on http://%s", a.config.WebBind)
	return http.ListenAndServe(a.config.WebBind, handler)
}
