package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"nimbus-portal/internal/config"
	"nimbus-portal/internal/crypto"
	"nimbus-portal/internal/enrichment"
	"nimbus-portal/internal/handler"
	"nimbus-portal/internal/middleware"
	"nimbus-portal/internal/repository"
	"nimbus-portal/internal/service"
	"nimbus-portal/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	router *gin.Engine
	db     *sqlx.DB
	cfg    *config.Config
	log    *zap.Logger
}

func NewServer(cfg *config.Config, db *sqlx.DB, log *zap.Logger) (*Server, error) {
	router := gin.New()
	router.Use(middleware.RequestLogger(log), middleware.Recovery(log))

	tmpl, err := handler.Templates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	router.SetHTMLTemplate(tmpl)

	s := &Server{
		router: router,
		db:     db,
		cfg:    cfg,
		log:    log,
	}

	s.setupRoutes()

	return s, nil
}

func (s *Server) setupRoutes() {
	cfg := s.cfg

	userRepo := repository.NewUserRepository(s.log)
	hasher := crypto.NewPasswordHasher(crypto.Argon2Params{
		Time:      cfg.Password.Time,
		MemoryKiB: cfg.Password.MemoryKiB,
		Threads:   cfg.Password.Threads,
	})
	sessions := session.NewManager(cfg.Session.Secret, cfg.SessionTTL())

	limerick := enrichment.NewFileStatProbe(cfg.Files.LimerickPath, s.log)
	aggregator := enrichment.NewAggregator(
		enrichment.NewMetadataProbe(
			enrichment.NewIMDSClient(cfg.Metadata.Endpoint),
			cfg.MetadataEnabled(),
			cfg.MetadataTimeout(),
			s.log,
		),
		limerick,
		s.log,
	)

	portal := handler.NewPortalHandler(handler.PortalConfig{
		AuthService:    service.NewAuthService(userRepo, hasher, s.log),
		ProfileService: service.NewProfileService(userRepo, s.log),
		Collector:      aggregator,
		Sessions:       sessions,
		ProjectName:    cfg.ProjectName,
		LimerickPath:   limerick.Path(),
	}, s.log)
	health := handler.NewHealthHandler(s.db, userRepo, cfg.ProjectName, s.log)

	s.router.GET("/health", health.Health)

	pages := s.router.Group("/")
	pages.Use(middleware.Session(sessions, s.log))
	{
		pages.GET("/", portal.LoginPage)
		pages.GET("/about", portal.About)
		pages.GET("/files/limerick", portal.DownloadLimerick)
	}

	// Routes that touch the users table get a dedicated connection.
	store := pages.Group("/")
	store.Use(middleware.StoreConn(s.db, s.log))
	{
		store.POST("/", portal.Login)
		store.GET("/profile/:username/complete", portal.CompleteProfilePage)
		store.POST("/profile/:username/complete", portal.CompleteProfile)
		store.GET("/dashboard/:username", portal.Dashboard)
	}
}

// Handler returns the router, wrapped in CORS handling when origins are configured.
func (s *Server) Handler() http.Handler {
	if len(s.cfg.Server.AllowedOrigins) == 0 {
		return s.router
	}
	return cors.New(cors.Options{
		AllowedOrigins:   s.cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowCredentials: true,
	}).Handler(s.router)
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Server.Port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Server starting", zap.String("addr", srv.Addr), zap.String("project", s.cfg.ProjectName))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
