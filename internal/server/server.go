package server

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Blackmamoth/collably-sub000/internal/auth"
	"github.com/Blackmamoth/collably-sub000/internal/cache"
	"github.com/Blackmamoth/collably-sub000/internal/config"
	"github.com/Blackmamoth/collably-sub000/internal/handler"
	"github.com/Blackmamoth/collably-sub000/internal/middleware"
	"github.com/Blackmamoth/collably-sub000/internal/presence"
	"github.com/Blackmamoth/collably-sub000/internal/service"
)

// Server Fiber 서버 래퍼
type Server struct {
	app           *fiber.App
	cfg           *config.Config
	boardHandler  *handler.BoardHandler
	healthHandler *handler.HealthHandler
	projects      *middleware.ProjectMiddleware
	jwtManager    *auth.JWTManager
}

// New 새 서버 인스턴스 생성
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *Server {
	app := fiber.New(fiber.Config{
		AppName:         "Collably Board",
		ServerHeader:    "Fiber",
		StrictRouting:   true,
		CaseSensitive:   true,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		Prefork:         false, // WebSocket과 호환성 문제로 비활성화
		ReadBufferSize:  16384,
		WriteBufferSize: 16384,
		BodyLimit:       1 * 1024 * 1024,
	})

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)

	memberService := service.NewMemberService(db)
	boardService := service.NewBoardService(db)
	presenceManager := presence.NewManagerWithClient(rdb, cfg.Board.PresenceTTL, nil)
	snapshotCache := cache.NewRedisClientWith(rdb, 0)

	boardHandler := handler.NewBoardHandler(boardService, memberService, presenceManager, snapshotCache, rdb)
	healthHandler := handler.NewHealthHandler(
		map[string]handler.Pinger{
			"database": func(ctx context.Context) error {
				if db == nil {
					return errors.New("database not configured")
				}
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
		},
		map[string]handler.Pinger{
			"redis": snapshotCache.Ping,
		},
	)

	return &Server{
		app:           app,
		cfg:           cfg,
		boardHandler:  boardHandler,
		healthHandler: healthHandler,
		projects:      middleware.NewProjectMiddleware(memberService),
		jwtManager:    jwtManager,
	}
}

// App 테스트용 fiber 앱 접근자
func (s *Server) App() *fiber.App {
	return s.app
}

// SetupMiddleware 미들웨어 설정
func (s *Server) SetupMiddleware() {
	// 패닉 복구
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// 로깅
	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	// CORS
	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORS.AllowOrigins,
		AllowHeaders:     s.cfg.CORS.AllowHeaders,
		AllowMethods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		AllowCredentials: s.cfg.CORS.AllowOrigins != "*",
	}))
}

// SetupRoutes 라우트 설정
func (s *Server) SetupRoutes() {
	// 헬스체크 엔드포인트
	s.app.Get("/health", s.healthHandler.Check)
	s.app.Get("/health/live", s.healthHandler.Liveness)
	s.app.Get("/health/ready", s.healthHandler.Readiness)

	// Rate Limiter 설정 (멤버 단위, 없으면 IP)
	apiLimiter := limiter.New(limiter.Config{
		Max:        s.cfg.Server.RateLimit,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			if id, ok := c.Locals("memberID").(string); ok && id != "" {
				return id
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, please try again later",
			})
		},
	})

	api := s.app.Group("/api", auth.AuthMiddleware(s.jwtManager), apiLimiter)
	api.Get("/me", s.boardHandler.GetMe)
	api.Get("/workspace/members", s.boardHandler.GetWorkspaceMembers)

	// Board 라우트 그룹 (프로젝트 멤버만)
	project := api.Group("/projects/:projectId", s.projects.RequireMembership())
	project.Get("/elements", s.boardHandler.GetElements)
	project.Post("/elements", s.boardHandler.CreateElement)
	project.Patch("/elements/:id", s.boardHandler.PatchElement)
	project.Delete("/elements/:id", s.boardHandler.DeleteElement)
	project.Post("/elements/:id/vote", s.boardHandler.ToggleVote)
	project.Get("/elements/:id/comments", s.boardHandler.GetComments)
	project.Post("/elements/:id/comments", s.boardHandler.AddComment)
	project.Get("/presence", s.boardHandler.GetPresence)
	project.Put("/presence", s.boardHandler.PutPresence)
	project.Delete("/presence", s.boardHandler.DeletePresence)

	// WebSocket 구독 (?token= 으로 인증)
	ws := s.app.Group("/ws/projects/:projectId",
		func(c *fiber.Ctx) error {
			if !websocket.IsWebSocketUpgrade(c) {
				return fiber.ErrUpgradeRequired
			}
			return c.Next()
		},
		auth.AuthMiddleware(s.jwtManager),
		s.projects.RequireMembership(),
	)
	wsConfig := websocket.Config{
		HandshakeTimeout: s.cfg.WebSocket.HandshakeTimeout,
		ReadBufferSize:   s.cfg.WebSocket.ReadBufferSize,
		WriteBufferSize:  s.cfg.WebSocket.WriteBufferSize,
	}
	ws.Get("/elements", websocket.New(s.boardHandler.StreamElements, wsConfig))
	ws.Get("/presence", websocket.New(s.boardHandler.StreamPresence, wsConfig))
}

// Start 서버 시작 (Graceful Shutdown 지원)
func (s *Server) Start() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("🛑 Shutting down server...")
		if err := s.Shutdown(); err != nil {
			log.Fatalf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("🚀 Collably board server starting on %s", s.cfg.Server.Port)
	log.Printf("📡 WebSocket endpoints: ws://localhost%s/ws/projects/:projectId/{elements,presence}", s.cfg.Server.Port)

	return s.app.Listen(s.cfg.Server.Port)
}

// Shutdown 서버 종료
func (s *Server) Shutdown() error {
	s.boardHandler.Hub().Shutdown()
	return s.app.ShutdownWithTimeout(30 * time.Second)
}
