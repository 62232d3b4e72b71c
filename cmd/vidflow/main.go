package main

import (
	"context"
	"database/sql"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	config "github.com/davicafu/vidflow/internal/config"
	indexApp "github.com/davicafu/vidflow/internal/index/application"
	indexDomain "github.com/davicafu/vidflow/internal/index/domain"
	indexEvents "github.com/davicafu/vidflow/internal/index/infra/inbound/events"
	indexHttp "github.com/davicafu/vidflow/internal/index/infra/inbound/http"
	searchClickhouse "github.com/davicafu/vidflow/internal/index/infra/outbound/search/clickhouse"
	searchInmemory "github.com/davicafu/vidflow/internal/index/infra/outbound/search/inmemory"
	sharedDomain "github.com/davicafu/vidflow/internal/shared/domain"
	sharedEvents "github.com/davicafu/vidflow/internal/shared/events"
	dbPostgres "github.com/davicafu/vidflow/internal/shared/infra/db/postgres"
	dbSqlite "github.com/davicafu/vidflow/internal/shared/infra/db/sqlite"
	"github.com/davicafu/vidflow/internal/shared/infra/docstore"
	infraEvents "github.com/davicafu/vidflow/internal/shared/infra/events"
	"github.com/davicafu/vidflow/internal/shared/infra/executor"
	sharedBus "github.com/davicafu/vidflow/internal/shared/infra/platform/bus"
	infraRelayer "github.com/davicafu/vidflow/internal/shared/infra/relayer"
	summaryApp "github.com/davicafu/vidflow/internal/summary/application"
	summaryDomain "github.com/davicafu/vidflow/internal/summary/domain"
	summaryEvents "github.com/davicafu/vidflow/internal/summary/infra/inbound/events"
	summaryPostgres "github.com/davicafu/vidflow/internal/summary/infra/outbound/db/postgres"
	summarySqlite "github.com/davicafu/vidflow/internal/summary/infra/outbound/db/sqlite"
	summaryEngine "github.com/davicafu/vidflow/internal/summary/infra/outbound/engine"
	transcriptionApp "github.com/davicafu/vidflow/internal/transcription/application"
	transcriptDomain "github.com/davicafu/vidflow/internal/transcription/domain"
	transcriptionEvents "github.com/davicafu/vidflow/internal/transcription/infra/inbound/events"
	transcriptPostgres "github.com/davicafu/vidflow/internal/transcription/infra/outbound/db/postgres"
	transcriptSqlite "github.com/davicafu/vidflow/internal/transcription/infra/outbound/db/sqlite"
	transcriptionEngine "github.com/davicafu/vidflow/internal/transcription/infra/outbound/engine"
	videoApp "github.com/davicafu/vidflow/internal/video/application"
	videoDomain "github.com/davicafu/vidflow/internal/video/domain"
	videoHttp "github.com/davicafu/vidflow/internal/video/infra/inbound/http"
	videoPostgres "github.com/davicafu/vidflow/internal/video/infra/outbound/db/postgres"
	videoSqlite "github.com/davicafu/vidflow/internal/video/infra/outbound/db/sqlite"

	"github.com/davicafu/vidflow/pkg/logger"

	_ "github.com/jackc/pgx/v5/stdlib"
	// _ "github.com/mattn/go-sqlite3" // better performance but requires gcc
	_ "modernc.org/sqlite"
)

// ---------------- Main ----------------
func main() {
	logger.Init(config.ServiceName) // inicializa zap
	log := logger.Logger()          // obtiene logger estructurado
	defer log.Sync()       // flush buffers al salir

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()

	// ---------------- DB ----------------
	var db *sql.DB
	var err error

	var videoRepo videoDomain.VideoRepository
	var transcriptRepo transcriptDomain.TranscriptRepository
	var summaryRepo summaryDomain.SummaryRepository
	var outboxRepo sharedDomain.OutboxRepository
	var processedRepo sharedDomain.ProcessedMessageRepository

	if cfg.LocalDeployment {
		db, err = sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			log.Fatal("failed to open SQLite", zap.Error(err))
		}
		if err := dbSqlite.InitSchema(db); err != nil {
			log.Fatal("failed to initialize SQLite schema", zap.Error(err))
		}
		outboxRepo = dbSqlite.NewOutboxRepoSQLite(db)
		processedRepo = dbSqlite.NewProcessedRepoSQLite(db, log)
		videoRepo = videoSqlite.NewVideoRepoSQLite(db, outboxRepo)
		transcriptRepo = transcriptSqlite.NewTranscriptRepoSQLite(db, outboxRepo)
		summaryRepo = summarySqlite.NewSummaryRepoSQLite(db, outboxRepo)
	} else {
		db, err = sql.Open("pgx", cfg.PostgresURL)
		if err != nil {
			log.Fatal("failed to open PostgreSQL", zap.Error(err))
		}
		outboxRepo = dbPostgres.NewOutboxRepoPostgres(db)
		processedRepo = dbPostgres.NewProcessedRepoPostgres(db, log)
		videoRepo = videoPostgres.NewVideoRepoPostgres(db, outboxRepo)
		transcriptRepo = transcriptPostgres.NewTranscriptRepoPostgres(db, outboxRepo)
		summaryRepo = summaryPostgres.NewSummaryRepoPostgres(db, outboxRepo)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		log.Fatal("failed to ping database", zap.Error(err))
	}

	// ---------------- Docstore ----------------
	var docs docstore.Store
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err == nil {
		mongoStore, merr := docstore.NewMongoStore(ctx, mongoClient, cfg.MongoDatabase)
		if merr != nil {
			err = merr
		} else {
			docs = mongoStore
			defer mongoClient.Disconnect(context.Background())
			log.Info("✅ MongoDB conectado, docstore habilitado")
		}
	}
	if docs == nil {
		log.Warn("⚠️ MongoDB no disponible, docstore en memoria", zap.Error(err))
		docs = docstore.NewInMemoryStore()
	}

	// ---------------- Search index ----------------
	var search indexDomain.SearchIndex
	chIndex, err := searchClickhouse.NewSearchIndexClickHouse(cfg.ClickHouseAddr, cfg.ClickHouseDB)
	if err == nil {
		if err = chIndex.InitSchema(); err == nil {
			search = chIndex
			log.Info("✅ ClickHouse conectado, índice de búsqueda habilitado")
		}
	}
	if search == nil {
		log.Warn("⚠️ ClickHouse no disponible, índice en memoria", zap.Error(err))
		search = searchInmemory.NewSearchIndexInMemory()
	}

	// ---------------- Executor ----------------
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to ping Redis (executor queue)", zap.Error(err))
	}
	exec := executor.NewRedisExecutor(rdb, cfg.ExecutorPoll, 4, log)

	// --------------- Servicios --------------
	tracker := videoApp.NewStatusTracker(videoRepo, log)
	videoService := videoApp.NewVideoService(videoRepo, log)

	transcribeTask := transcriptionApp.NewTranscribeTask(
		videoRepo, transcriptRepo, transcriptionEngine.NewLocalTranscriber(),
		docs, tracker, config.ServiceName, log,
	)
	summarizeTask := summaryApp.NewSummarizeTask(
		videoRepo, transcriptRepo, summaryRepo, summaryEngine.NewLocalSummarizer(),
		docs, tracker, config.ServiceName, log,
	)
	indexTask := indexApp.NewIndexTask(
		videoRepo, transcriptRepo, summaryRepo, search, tracker, config.ServiceName, log,
	)

	exec.Register(transcriptionApp.TaskTranscribeVideo, transcribeTask.Handle)
	exec.Register(summaryApp.TaskSummarizeVideo, summarizeTask.Handle)
	exec.Register(indexApp.TaskIndexVideo, indexTask.Handle)

	go func() {
		if err := exec.Run(ctx); err != nil {
			log.Error("executor stopped with error", zap.Error(err))
		}
	}()

	// ---------------- Events ---------------
	transcodedConsumer := transcriptionEvents.NewTranscodedConsumer(transcriptRepo, processedRepo, exec, log)
	transcribedConsumer := summaryEvents.NewTranscribedConsumer(summaryRepo, processedRepo, exec, log)
	summarizedConsumer := indexEvents.NewSummarizedConsumer(videoRepo, processedRepo, exec, log)

	var publisher sharedBus.EventBus

	if cfg.LocalDeployment {
		log.Info("⚡️Usando bus de eventos en memoria (canales de Go)")

		bus := infraEvents.NewInMemoryEventBus()
		publisher = bus

		infraEvents.BackgroundConsumerChan(ctx, bus.Subscribe(sharedEvents.TopicVideoTranscoded, 10), transcodedConsumer)
		infraEvents.BackgroundConsumerChan(ctx, bus.Subscribe(sharedEvents.TopicVideoTranscribed, 10), transcribedConsumer)
		infraEvents.BackgroundConsumerChan(ctx, bus.Subscribe(sharedEvents.TopicVideoSummarized, 10), summarizedConsumer)
	} else {
		log.Info("🚀 Usando Kafka como bus de eventos")

		// El writer es genérico: cada mensaje lleva su propio topic.
		writer := kafka.NewWriter(kafka.WriterConfig{
			Brokers: cfg.KafkaBrokers,
		})
		defer writer.Close()
		publisher = infraEvents.NewKafkaPublisher(writer, log)

		consumers := map[string]infraEvents.MessageHandler{
			sharedEvents.TopicVideoTranscoded:  transcodedConsumer,
			sharedEvents.TopicVideoTranscribed: transcribedConsumer,
			sharedEvents.TopicVideoSummarized:  summarizedConsumer,
		}
		for topic, handler := range consumers {
			reader := kafka.NewReader(kafka.ReaderConfig{
				Brokers:  cfg.KafkaBrokers,
				Topic:    topic,
				GroupID:  cfg.KafkaGroupID,
				MinBytes: 10e3, // 10KB
				MaxBytes: 10e6, // 10MB
			})
			defer reader.Close()
			infraEvents.NewConsumerAdapter(reader, handler, log).Start(ctx)
		}
	}

	// ------------ Outbox Worker ------------
	// Se podría ejecutar externamente
	outboxWorker := infraRelayer.NewOutboxWorker(outboxRepo, publisher, cfg.OutboxPeriod, cfg.OutboxLimit, log)
	outboxWorker.Start(ctx)

	// ---------------- HTTP ----------------
	videoHandler := videoHttp.NewVideoHandler(videoService)
	searchHandler := indexHttp.NewSearchHandler(search)
	router := gin.Default()
	videoHttp.RegisterVideoRoutes(router, videoHandler)
	indexHttp.RegisterSearchRoutes(router, searchHandler)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: router}
	go func() {
		log.Info("🚀 Server running",
			zap.String("url", "http://localhost:"+cfg.HTTPPort),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("🛑 Señal de parada recibida, cerrando...")
	if err := srv.Shutdown(context.Background()); err != nil {
		log.Warn("⚠️ Error en el shutdown del servidor HTTP", zap.Error(err))
	}
}
