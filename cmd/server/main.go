package main

import (
	"context"
	"fmt"
	"log"

	"tremo/internal/config"
	"tremo/internal/files"
	"tremo/internal/handlers"
	"tremo/internal/jobs"
	"tremo/internal/runners"
	"tremo/internal/storage"
	"tremo/internal/sweeper"
	"tremo/internal/version"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

func main() {
	// .envファイルを読み込み（存在しない場合はスキップ）
	_ = godotenv.Load()

	cfg := config.Load()

	// データベース接続
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// リポジトリ
	jobRepo := storage.NewJobRepository(db)
	runnerRepo := storage.NewRunnerRepository(db)
	regTokenRepo := storage.NewRegistrationTokenRepository(db)

	// ファイルストア
	fileStore, err := files.NewStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to create file store: %v", err)
	}

	// サービス
	registry := runners.NewRegistry(runnerRepo, regTokenRepo)
	jobService := jobs.NewService(jobRepo, runnerRepo, fileStore, jobs.LogGateway{}, cfg)

	// ハンドラー
	runnerHandler := handlers.NewRunnerHandler(registry, jobService)
	runnerJobHandler := handlers.NewRunnerJobHandler(registry, jobService, fileStore)
	adminHandler := handlers.NewAdminHandler(jobService, registry)

	// Echoインスタンスの作成
	e := echo.New()

	// ミドルウェアの設定
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// ポーリング系エンドポイントのレート制限
	pollLimiter := middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.RequestRatePerSecond)),
	})

	// ルートの登録
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":  "ok",
			"version": version.Version,
		})
	})

	api := e.Group("/api/v1")

	runnersGroup := api.Group("/runners")
	runnersGroup.POST("/register", runnerHandler.Register)
	runnersGroup.POST("/unregister", runnerHandler.Unregister)

	jobsGroup := runnersGroup.Group("/jobs")
	jobsGroup.POST("/request", runnerJobHandler.Request, pollLimiter)
	jobsGroup.POST("/:uuid/accept", runnerJobHandler.Accept, pollLimiter)
	jobsGroup.POST("/:uuid/update", runnerJobHandler.Update)
	jobsGroup.POST("/:uuid/error", runnerJobHandler.Error)
	jobsGroup.POST("/:uuid/abort", runnerJobHandler.Abort)
	jobsGroup.POST("/:uuid/success", runnerJobHandler.Success)

	admin := api.Group("/admin", handlers.AdminAuth(cfg.AdminToken))
	admin.POST("/jobs", adminHandler.CreateJob)
	admin.GET("/jobs", adminHandler.ListJobs)
	admin.GET("/jobs/stats", adminHandler.Stats)
	admin.GET("/jobs/:uuid", adminHandler.GetJob)
	admin.POST("/jobs/:uuid/cancel", adminHandler.CancelJob)
	admin.DELETE("/jobs/:uuid", adminHandler.DeleteJob)
	admin.GET("/runners", adminHandler.ListRunners)
	admin.DELETE("/runners/:id", adminHandler.DeleteRunner)
	admin.POST("/registration-tokens", adminHandler.GenerateRegistrationToken)
	admin.GET("/registration-tokens", adminHandler.ListRegistrationTokens)
	admin.DELETE("/registration-tokens/:id", adminHandler.DeleteRegistrationToken)

	// バックグラウンドスイープの起動
	sw := sweeper.New(jobRepo, fileStore, cfg.SweepInterval, cfg.RunnerStaleAfter, cfg.JobRetention)
	sw.Start(context.Background())
	defer sw.Stop()

	// サーバー起動
	log.Printf("Starting tremo v%s on port %s", version.Version, cfg.Port)
	if err := e.Start(fmt.Sprintf(":%s", cfg.Port)); err != nil {
		log.Fatal(err)
	}
}
