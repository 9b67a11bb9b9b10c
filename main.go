package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BerniceZTT/crm_stats/config"
	"github.com/BerniceZTT/crm_stats/controllers"
	"github.com/BerniceZTT/crm_stats/middleware"
	"github.com/BerniceZTT/crm_stats/repository"
	"github.com/BerniceZTT/crm_stats/routes"
	"github.com/BerniceZTT/crm_stats/service"
	"github.com/BerniceZTT/crm_stats/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	// 加载配置
	cfg := config.LoadConfig()

	// 初始化日志
	utils.InitLogger(cfg.Debug)
	utils.SetJWTSecret(cfg.JWTKey)

	// 设置Gin模式
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// 初始化数据库
	db, err := repository.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		utils.Logger.Fatal().Err(err).Msg("连接MongoDB失败")
	}
	defer repository.CloseMongoDB(context.Background())

	if err := repository.EnsureIndexes(ctx, db); err != nil {
		utils.Logger.Error().Err(err).Msg("创建索引失败")
	}

	health := map[string]routes.HealthCheck{"mongo": repository.PingMongoDB}

	// 缓存：优先 Redis，不可用时使用进程内缓存
	var cacheStore service.CacheStore
	if cfg.Redis.Addr != "" {
		rc, err := repository.NewRedisCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			utils.Logger.Warn().Err(err).Msg("Redis不可用，使用进程内缓存")
			cacheStore = repository.NewMemoryCache()
		} else {
			defer rc.Close()
			cacheStore = rc
			health["redis"] = rc.Ping
		}
	} else {
		cacheStore = repository.NewMemoryCache()
	}

	configProvider := service.NewConfigProvider(
		repository.NewMongoConfigStore(db),
		service.NewCacheLayer("config", cacheStore),
		cfg.Stats.ConfigTTL,
	)
	aggregator := service.NewAggregator(repository.NewMongoRecordSource(db, nil), service.AggregatorOptions{
		SourceTimeout: cfg.Stats.SourceTimeout,
		MaxParallel:   cfg.Stats.MaxParallel,
	})
	statsService := service.NewStatsService(
		configProvider,
		aggregator,
		service.NewAdviceEngine(),
		service.NewCacheLayer("payload", cacheStore),
		repository.NewMongoDismissalStore(db),
		service.StatsOptions{
			Location:   cfg.Stats.Location(),
			PayloadTTL: cfg.Stats.PayloadTTL,
		},
	)

	// 创建Gin实例
	router := gin.New()

	// 应用中间件
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.ErrorHandler())

	// 注册路由
	routes.RegisterRoutes(router, routes.Deps{
		Stats:  controllers.NewStatsController(statsService),
		Health: health,
	})

	// 设置HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 启动服务器
	go func() {
		utils.Logger.Info().Msgf("服务器启动，监听端口: %d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.Logger.Fatal().Err(err).Msg("启动服务器失败")
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	utils.Logger.Info().Msg("正在关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Logger.Error().Err(err).Msg("服务器关闭异常")
	}

	utils.Logger.Info().Msg("服务器已优雅关闭")
}
