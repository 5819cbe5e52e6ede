package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"StudySync/cache"
	"StudySync/config"
	"StudySync/core/account"
	"StudySync/core/ai"
	"StudySync/core/auth"
	"StudySync/core/notify"
	"StudySync/core/studyguide"
	"StudySync/db"
	"StudySync/logger"
	"StudySync/repository"
	"StudySync/storage"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Server 持有 HTTP 层依赖
type Server struct {
	accounts *account.Service
	guides   *studyguide.Service
	hub      *notify.Hub
	upgrader websocket.Upgrader
	opts     Options
}

// Options HTTP 层可选项
type Options struct {
	// AvatarUploads 为 true 时注册 POST /users/profile/picture
	AvatarUploads      bool
	CORSAllowedOrigins []string
	AuthRateLimit      int
}

// New 创建 Server，hub 可以为 nil（此时不提供 /ws）
func New(accounts *account.Service, guides *studyguide.Service, hub *notify.Hub, opts Options) *Server {
	return &Server{
		accounts: accounts,
		guides:   guides,
		hub:      hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		opts: opts,
	}
}

// registerRoutes 在给定路由器上注册全部业务路由
func (s *Server) registerRoutes(r *mux.Router) {
	limited := rateLimit(s.opts.AuthRateLimit)

	r.HandleFunc("/users", limited(s.RegisterHandler)).Methods(http.MethodPost)
	r.HandleFunc("/users/login", limited(s.LoginHandler)).Methods(http.MethodPost)
	r.HandleFunc("/users/profile", s.AuthMiddleware(s.GetProfileHandler)).Methods(http.MethodGet)
	r.HandleFunc("/users/profile", s.AuthMiddleware(s.UpdateProfileHandler)).Methods(http.MethodPut)
	if s.opts.AvatarUploads {
		r.HandleFunc("/users/profile/picture", s.AuthMiddleware(s.UploadProfilePictureHandler)).Methods(http.MethodPost)
	}
	r.HandleFunc("/users/account", s.AuthMiddleware(s.DeleteAccountHandler)).Methods(http.MethodDelete)
	r.HandleFunc("/users/reset-data", s.AuthMiddleware(s.ResetDataHandler)).Methods(http.MethodPost)

	r.HandleFunc("/study-guides", s.ListStudyGuidesHandler).Methods(http.MethodGet)
	r.HandleFunc("/study-guides", s.AuthMiddleware(s.CreateStudyGuideHandler)).Methods(http.MethodPost)
	r.HandleFunc("/study-guides/my-guides", s.AuthMiddleware(s.MyStudyGuidesHandler)).Methods(http.MethodGet)
	r.HandleFunc("/study-guides/{id}", s.GetStudyGuideHandler).Methods(http.MethodGet)
	r.HandleFunc("/study-guides/{id}", s.AuthMiddleware(s.UpdateStudyGuideHandler)).Methods(http.MethodPut)
	r.HandleFunc("/study-guides/{id}", s.AuthMiddleware(s.DeleteStudyGuideHandler)).Methods(http.MethodDelete)
	r.HandleFunc("/study-guides/{id}/upvote", s.AuthMiddleware(s.UpvoteStudyGuideHandler)).Methods(http.MethodPut)
}

// Handler 组装路由与中间件，业务路由同时挂在 / 和 /api 下
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/", s.HealthHandler).Methods(http.MethodGet)
	if s.hub != nil {
		router.HandleFunc("/ws", s.WebSocketHandler).Methods(http.MethodGet)
	}

	s.registerRoutes(router.PathPrefix("/api").Subrouter())
	s.registerRoutes(router)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not found")
	})

	var handler http.Handler = router
	handler = requestLogger(handler)
	handler = recoverer(handler)
	handler = corsMiddleware(s.opts.CORSAllowedOrigins)(handler)
	return handler
}

// Start 加载配置、连接依赖并启动 HTTP 服务，收到信号后优雅退出
func Start(cfg *config.Config) error {
	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogFile,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAge,
		Compress:   cfg.LogCompress,
	})
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gormDB, err := db.ConnectGormDB(cfg)
	if err != nil {
		return err
	}
	defer db.CloseGormDB()

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	userRepo := repository.NewGormUserRepository(gormDB)
	guideRepo := repository.NewGormStudyGuideRepository(gormDB)

	hub := notify.NewHub()
	go hub.Run()
	defer hub.Stop()

	var notifier notify.Notifier = hub
	var guideCache studyguide.GuideCache
	if cfg.RedisEnabled {
		client, err := db.ConnectRedis(cfg)
		if err != nil {
			return err
		}
		defer db.CloseRedis()
		logger.Info("Redis 连接成功", logger.String("host", cfg.RedisHost))

		guideCache = cache.NewGuideCache(client, cfg.CacheTTL)
		bridge := notify.NewRedisBridge(client, cfg.RedisEventsChannel, hub)
		go bridge.Run(ctx)
		notifier = bridge
	}

	var avatars account.AvatarStore
	if cfg.MinioEnabled {
		store, err := storage.NewMinioStore(ctx, cfg)
		if err != nil {
			return err
		}
		avatars = store
	}

	var completer ai.Completer
	if cfg.AIAPIKey != "" {
		completer = ai.NewClient(ai.ClientConfig{
			Provider:   cfg.AIProvider,
			APIBaseURL: cfg.AIAPIURL,
			APIKey:     cfg.AIAPIKey,
			Model:      cfg.AIModel,
		})
	} else {
		logger.Warn("未配置 AI_API_KEY，AI 内容生成已禁用")
	}
	generator := ai.NewGenerator(completer, cfg.AITimeout)

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiry)
	guideSvc := studyguide.NewService(guideRepo, userRepo, generator, notifier, guideCache)
	accountSvc := account.NewService(userRepo, guideRepo, tokens, account.Options{
		Notifier: notifier,
		Avatars:  avatars,
		Cache:    guideSvc,
	})

	srv := New(accountSvc, guideSvc, hub, Options{
		AvatarUploads:      avatars != nil,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		AuthRateLimit:      cfg.AuthRateLimit,
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("StudySync API 启动",
			logger.String("addr", httpServer.Addr),
			logger.Bool("redis", cfg.RedisEnabled),
			logger.Bool("minio", cfg.MinioEnabled),
			logger.Bool("ai", generator.Enabled()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return err
	}
	logger.Info("正在关闭服务...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("服务已停止")
	return nil
}
