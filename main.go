package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"skillswap_server/config"
	"skillswap_server/routes"
	"skillswap_server/services"
	"skillswap_server/socket"
	"skillswap_server/store"
)

type stores struct {
	profiles      store.ProfileStore
	conversations store.ConversationStore
	audit         store.AuditStore
	ratings       store.RatingStore
}

func main() {
	var cfg config.Config
	if err := config.Load(&cfg); err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize stores", zap.Error(err))
	}

	// Live fan-out
	hub := socket.NewHub(nil, cfg.StoreTimeout, logger.Named("socket"))
	go func() {
		if err := hub.Server.Serve(); err != nil {
			logger.Error("socket server stopped", zap.Error(err))
		}
	}()
	defer hub.Server.Close()

	// Services
	directory := services.NewDirectory(logger.Named("directory"))
	go func() {
		if err := directory.Run(ctx, st.profiles); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("directory stopped", zap.Error(err))
		}
	}()

	chat := services.NewChatService(st.conversations, st.profiles, hub, cfg.MaxPartners, logger.Named("chat"))
	hub.Source = chat
	handshake := services.NewHandshakeService(st.conversations, st.profiles, hub, logger.Named("handshake"))
	handshake.ResetAfterDecision = cfg.HandshakeResetAfterDecision

	svc := routes.Services{
		Members:      services.NewMemberService(st.profiles, logger.Named("members")),
		Verification: services.NewVerificationService(st.profiles, st.audit, logger.Named("verification")),
		Matches:      services.NewMatchService(st.profiles, directory, logger.Named("matches")),
		Chat:         chat,
		Handshake:    handshake,
		Ratings:      services.NewRatingService(st.ratings, st.profiles, logger.Named("ratings")),
		Timeout:      cfg.StoreTimeout,
		Log:          logger.Named("http"),
	}
	if cfg.EvidenceBucket != "" {
		presigner, err := services.NewS3Presigner(ctx, cfg.AWSRegion)
		if err != nil {
			logger.Fatal("failed to initialize evidence hosting", zap.Error(err))
		}
		svc.Evidence = services.NewEvidenceService(presigner, cfg.EvidenceBucket, cfg.PresignTTL, logger.Named("evidence"))
	} else {
		logger.Warn("EVIDENCE_BUCKET not set, evidence upload routes disabled")
	}

	// Initialize the router
	r := mux.NewRouter()
	routes.RegisterRoutes(r, svc)
	r.Handle("/socket.io/", hub.Server)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Member-Id", "X-Member-Role"},
		AllowCredentials: true,
	}).Handler(r)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("starting server",
		zap.String("addr", srv.Addr),
		zap.String("store_backend", cfg.StoreBackend),
		zap.Bool("handshake_reset_after_decision", cfg.HandshakeResetAfterDecision))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("server stopped")
}

func openStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (stores, error) {
	if cfg.StoreBackend == config.BackendMemory {
		logger.Warn("using in-memory stores, data is lost on restart")
		return stores{
			profiles:      store.NewMemoryProfileStore(),
			conversations: store.NewMemoryConversationStore(),
			audit:         store.NewMemoryAuditStore(),
			ratings:       store.NewMemoryRatingStore(),
		}, nil
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := store.InitializeDynamoDBClient(initCtx, cfg.AWSRegion, cfg.DynamoEndpoint)
	if err != nil {
		return stores{}, err
	}
	dynamo := &store.DynamoService{Client: client, Log: logger.Named("dynamo")}
	logger.Info("DynamoDB client initialized",
		zap.String("region", cfg.AWSRegion),
		zap.String("members_table", cfg.MembersTable))

	return stores{
		profiles:      store.NewDynamoProfileStore(dynamo, cfg.MembersTable, cfg.PollInterval, logger.Named("profiles")),
		conversations: store.NewDynamoConversationStore(dynamo, cfg.ConversationsTable, cfg.MessagesTable, cfg.PollInterval, logger.Named("conversations")),
		audit:         store.NewDynamoAuditStore(dynamo, cfg.ClaimAuditTable),
		ratings:       store.NewDynamoRatingStore(dynamo, cfg.RatingsTable),
	}, nil
}
