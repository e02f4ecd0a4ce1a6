package main

import (
	"context"
	"log"
	"os"

	"cloud.google.com/go/firestore"
	fbapp "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/option"

	"supportdesk/internal/adapter/api"
	"supportdesk/internal/adapter/api/handler"
	apimiddleware "supportdesk/internal/adapter/api/middleware"
	"supportdesk/internal/adapter/api/router"
	"supportdesk/internal/adapter/repository"
	"supportdesk/internal/infrastructure/firebase"
	"supportdesk/internal/infrastructure/websocket"
	"supportdesk/internal/usecase"
	"supportdesk/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	var opts []option.ClientOption
	if serviceAccountJSON := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON"); serviceAccountJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(serviceAccountJSON)))
	} else if serviceAccountPath := os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH"); serviceAccountPath != "" {
		opts = append(opts, option.WithCredentialsFile(serviceAccountPath))
	}

	firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opts...)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	var fbAuthClient *fbauth.Client
	fbAuthClient, err = firebaseApp.Auth(ctx)
	if err != nil {
		if cfg.Environment != "development" || cfg.DevTokenSecret == "" {
			log.Fatalf("Failed to initialize Firebase Auth: %v", err)
		}
		// Dev tokens carry auth on their own in development.
		log.Printf("Firebase Auth unavailable, continuing with dev tokens only: %v", err)
	}

	firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opts...)
	if err != nil {
		log.Fatalf("Failed to create Firestore client: %v", err)
	}
	defer firestoreClient.Close()

	conversationRepo := repository.NewFirestoreConversationRepository(firestoreClient)

	authClient := firebase.NewAuthClient(fbAuthClient, cfg.DevTokenSecret, cfg.DevTokenExpiry)

	wsManager := websocket.NewManager()
	wsManager.Start(ctx)

	locks := usecase.NewLockCoordinator()
	conversationUseCase := usecase.NewConversationUseCase(conversationRepo, locks, wsManager)

	gateway := websocket.NewGateway(wsManager, conversationUseCase)

	e := echo.New()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(authClient)
	adminMiddleware := apimiddleware.NewAdminMiddleware()

	conversationHandler := handler.NewConversationHandler(conversationUseCase)
	wsHandler := handler.NewWebSocketHandler(gateway, authClient)
	healthHandler := handler.NewHealthHandler()
	devTokenHandler := handler.NewDevTokenHandler(authClient)

	router.Setup(e, conversationHandler, wsHandler, healthHandler, devTokenHandler, authMiddleware, adminMiddleware, cfg.Environment)

	log.Printf("Starting server on port %s", cfg.ServerPort)
	if err := e.Start(":" + cfg.ServerPort); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
