package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayush/estate-market/internal/auth"
	"github.com/ayush/estate-market/internal/config"
	"github.com/ayush/estate-market/internal/events"
	"github.com/ayush/estate-market/internal/favorites"
	"github.com/ayush/estate-market/internal/intake"
	"github.com/ayush/estate-market/internal/listing"
	"github.com/ayush/estate-market/internal/middleware"
	"github.com/ayush/estate-market/internal/store"
	"github.com/ayush/estate-market/internal/user"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	// ── PostgreSQL ────────────────────────────────────────────
	pgPool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("postgres connect: %v", err)
	}
	defer pgPool.Close()
	ledger := store.NewSubmissionLedger(pgPool)
	if err := ledger.Migrate(ctx); err != nil {
		log.Fatalf("postgres migrate: %v", err)
	}

	// ── MongoDB ──────────────────────────────────────────────
	mongoClient, err := store.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatalf("mongo connect: %v", err)
	}
	defer mongoClient.Disconnect(ctx)
	mongoDB := mongoClient.Database(cfg.MongoDB)
	if err := store.EnsureIndexes(ctx, mongoDB); err != nil {
		log.Fatalf("mongo indexes: %v", err)
	}
	users := store.NewUserStore(mongoDB)
	listings := store.NewListingStore(mongoDB)

	// ── Redis ────────────────────────────────────────────────
	rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("redis connect: %v", err)
	}
	defer rdb.Close()
	sessions := auth.NewSessionStore(rdb)
	tokens := auth.NewTokens(cfg.JWTSecret, auth.SessionTTL)
	gate := auth.NewGate(tokens, sessions)
	requireAuth := middleware.RequireAuth(gate)

	// ── Object storage ───────────────────────────────────────
	minioStore, err := store.NewMinioStore(
		ctx, cfg.MinioEndpoint, cfg.MinioAccessKey,
		cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL,
	)
	if err != nil {
		log.Fatalf("minio connect: %v", err)
	}
	var images intake.ObjectStore = minioStore
	if cfg.CloudinaryURL != "" {
		cld, err := store.NewCloudinaryStore(cfg.CloudinaryURL, cfg.CloudinaryDir)
		if err != nil {
			log.Fatalf("cloudinary: %v", err)
		}
		images = cld
	} else {
		log.Println("CLOUDINARY_URL not set - listing images go to MinIO")
	}
	files := intake.New(minioStore, images)

	// ── Kafka ────────────────────────────────────────────────
	producer := events.NewProducer(cfg.KafkaBroker, cfg.KafkaTopic)
	defer producer.Close()

	// ── Services & handlers ──────────────────────────────────
	coord := favorites.NewCoordinator(users, listings)
	listingSvc := listing.NewService(listings, coord, files, producer)
	userSvc := user.NewService(user.Deps{
		Users:     users,
		Listings:  listings,
		Ledger:    ledger,
		Favorites: coord,
		Sessions:  sessions,
		Files:     files,
		Events:    producer,
	})

	authHandler := auth.NewHandler(users, sessions, tokens, producer, cfg.CookieSecure)
	listingHandler := listing.NewHandler(listingSvc)
	userHandler := user.NewHandler(userSvc, cfg.CookieSecure)
	favHandler := favorites.NewHandler(coord)

	// ── Router ───────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authHandler.Signup)
			r.Post("/signin", authHandler.Signin)
			r.Get("/signout", authHandler.Signout)
		})
		r.Mount("/listing", listingHandler.Routes(requireAuth))
		r.Route("/user", func(r chi.Router) {
			r.Use(requireAuth)
			favHandler.Mount(r)
			userHandler.Mount(r)
		})
	})

	// Stored documents
	r.Get(store.UploadsPrefix+"*", intake.ServeUploads(minioStore))

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  1 * time.Minute,
		WriteTimeout: 1 * time.Minute,
	}

	go func() {
		log.Printf("Estate API listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	srv.Shutdown(shutCtx)
}
