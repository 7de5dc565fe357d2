package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"farmlens/api/internal/cache"
	"farmlens/api/internal/camera"
	"farmlens/api/internal/config"
	"farmlens/api/internal/gate"
	"farmlens/api/internal/middleware"
	"farmlens/api/internal/predict"
	"farmlens/api/internal/repository"
	"farmlens/api/internal/service"
	"farmlens/api/internal/storage"
)

type HandlerSet struct {
	log          zerolog.Logger
	cfg          *config.AppConfig
	authService  *service.AuthService
	scanService  *service.ScanService
	sessionHub   *gate.Hub
	cameraDevice camera.Device
	db           *pgxpool.Pool
	cache        *redis.Client
	users        *repository.UserRepository
	sessions     *repository.SessionRepository
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, redisClient *redis.Client, store *storage.ObjectStore, cfg *config.AppConfig) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	scanRepo := repository.NewScanRepository(db)

	sessionHub := gate.NewHub()
	auth := service.NewAuthService(userRepo, sessionRepo, sessionHub, cfg, log)

	predictor := predict.NewClient(cfg.Predict, log)
	lock := cache.NewAnalysisLock(redisClient, 2*time.Minute)
	scans := service.NewScanService(scanRepo, store, predictor, lock, log)

	var cameraDevice camera.Device
	if cfg.Capture.Enabled {
		cameraDevice = &camera.VideoCaptureDevice{DeviceID: cfg.Capture.DeviceID}
	}

	return HandlerSet{
		log:          log,
		cfg:          cfg,
		authService:  auth,
		scanService:  scans,
		sessionHub:   sessionHub,
		cameraDevice: cameraDevice,
		db:           db,
		cache:        redisClient,
		users:        userRepo,
		sessions:     sessionRepo,
	}
}

func (h HandlerSet) Mount(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/logout", h.Logout)

		protected := v1.Group("/auth")
		protected.Use(middleware.Auth(h.cfg, h.users, h.sessions))
		protected.GET("/me", h.Me)
		protected.GET("/sessions", h.ListSessions)
		protected.DELETE("/sessions/:deviceId", h.RevokeSession)
	}

	scans := v1.Group("/scans")
	scans.Use(middleware.Auth(h.cfg, h.users, h.sessions))
	scans.POST("/analyze", h.AnalyzeScan)
	scans.POST("/capture", h.CaptureScan)
	scans.GET("", h.ListScans)
	scans.DELETE("/:id", h.DeleteScan)

	session := v1.Group("/session")
	session.Use(middleware.Auth(h.cfg, h.users, h.sessions))
	session.GET("/watch", h.WatchSession)
}
