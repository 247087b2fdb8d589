package main

import (
	"context"
	"log"
	"time"

	"github.com/Blackmamoth/collably-sub000/internal/cache"
	"github.com/Blackmamoth/collably-sub000/internal/config"
	"github.com/Blackmamoth/collably-sub000/internal/database"
	"github.com/Blackmamoth/collably-sub000/internal/server"
)

func main() {
	// 설정 로드
	cfg := config.Load()

	// 데이터베이스 연결
	db, err := database.ConnectDB(cfg.Database)
	if err != nil {
		log.Fatalf("❌ Database connection failed: %v", err)
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Ping 테스트
	if err := database.Ping(ctx); err != nil {
		log.Fatalf("❌ Database ping failed: %v", err)
	}
	log.Printf("✅ Database connected successfully")

	// Redis 연결 (presence, 스냅샷 캐시, 인스턴스 간 변경 알림)
	rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("❌ Redis connection failed: %v", err)
	}
	defer rdb.Close()
	log.Printf("✅ Redis connected (%s)", cfg.Redis.Addr)

	// 서버 생성 및 설정
	srv := server.New(cfg, db, rdb)
	srv.SetupMiddleware()
	srv.SetupRoutes()

	// 서버 시작
	if err := srv.Start(); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
