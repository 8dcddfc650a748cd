package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/marcelolino/servicos-conecte-sub004/internal/config"
	"github.com/marcelolino/servicos-conecte-sub004/internal/database"
	"github.com/marcelolino/servicos-conecte-sub004/internal/handlers"
	"github.com/marcelolino/servicos-conecte-sub004/internal/repository"
	cronjobs "github.com/marcelolino/servicos-conecte-sub004/internal/scheduler"
	"github.com/marcelolino/servicos-conecte-sub004/internal/services"
	"github.com/marcelolino/servicos-conecte-sub004/internal/ws"
	"github.com/marcelolino/servicos-conecte-sub004/pkg/email"
	"github.com/marcelolino/servicos-conecte-sub004/pkg/logger"
	"github.com/marcelolino/servicos-conecte-sub004/pkg/middleware"
	"github.com/rs/cors"
)

func main() {
	// Load configuration from .env file
	cfg := config.LoadConfig()

	logger.InitLogger()
	logger.Log.Info("Logger initialized")

	db, err := database.ConnectDB(cfg)
	if err != nil {
		log.Fatalf("Database connection error: %v", err)
	}

	// --- Repositories ---
	userRepo := repository.NewUserRepository(db)
	listingRepo := repository.NewListingRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	chatRepo := repository.NewChatRepository(db)

	// One registry per process, injected everywhere it is needed.
	registry := ws.NewRegistry()

	var mailer *email.Sender
	if cfg.SMTPHost != "" {
		mailer = email.NewSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPSender, cfg.SMTPPassword)
	}

	// --- Services ---
	userService := services.NewUserService(userRepo)
	listingService := services.NewListingService(listingRepo)
	notificationService := services.NewNotificationService(notificationRepo, registry)
	bookingService := services.NewBookingService(bookingRepo, listingRepo, userRepo, notificationService, mailer)
	chatService := services.NewChatService(chatRepo, notificationService)

	// --- Handlers ---
	userHandler := handlers.NewUserHandler(userService, cfg)
	listingHandler := handlers.NewListingHandler(listingService)
	bookingHandler := handlers.NewBookingHandler(bookingService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	chatHandler := handlers.NewChatHandler(chatService)
	wsHandler := handlers.NewWSHandler(registry, notificationService, chatService, cfg.JWTSecret, cfg.WSAuthTimeout)

	router := mux.NewRouter()

	// Public routes
	router.HandleFunc("/users/register", userHandler.RegisterUserHandler).Methods("POST")
	router.HandleFunc("/users/login", userHandler.LoginUserHandler).Methods("POST")
	router.HandleFunc("/services", listingHandler.GetListingsHandler).Methods("GET")
	router.HandleFunc("/services/{id}", listingHandler.GetListingHandler).Methods("GET")

	// Single socket endpoint for all roles; identity comes from the auth frame.
	router.HandleFunc("/ws", wsHandler.ServeWS)

	// Protected user routes
	protectedUserRoutes := router.PathPrefix("/users").Subrouter()
	protectedUserRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	protectedUserRoutes.HandleFunc("/{id}", userHandler.GetUserHandler).Methods("GET")

	// Provider listing management
	listingRoutes := router.PathPrefix("/services").Subrouter()
	listingRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	listingRoutes.Use(middleware.RequireRole("provider"))
	listingRoutes.HandleFunc("", listingHandler.CreateListingHandler).Methods("POST")
	listingRoutes.HandleFunc("/{id}/deactivate", listingHandler.DeactivateListingHandler).Methods("PUT")

	// Booking routes
	bookingRoutes := router.PathPrefix("/bookings").Subrouter()
	bookingRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	bookingRoutes.HandleFunc("", bookingHandler.CreateBookingHandler).Methods("POST")
	bookingRoutes.HandleFunc("", bookingHandler.GetBookingsHandler).Methods("GET")
	bookingRoutes.HandleFunc("/{id}", bookingHandler.GetBookingHandler).Methods("GET")
	bookingRoutes.HandleFunc("/{id}/status", bookingHandler.UpdateBookingStatusHandler).Methods("PUT")

	// Notification routes
	notificationRoutes := router.PathPrefix("/notifications").Subrouter()
	notificationRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	notificationRoutes.HandleFunc("", notificationHandler.GetNotificationsHandler).Methods("GET")
	notificationRoutes.HandleFunc("/unread-count", notificationHandler.GetUnreadCountHandler).Methods("GET")
	notificationRoutes.HandleFunc("/mark-all-read", notificationHandler.MarkAllAsReadHandler).Methods("PUT")
	notificationRoutes.HandleFunc("/{id}/read", notificationHandler.MarkAsReadHandler).Methods("PUT")

	// Chat routes
	chatRoutes := router.PathPrefix("/chat").Subrouter()
	chatRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	chatRoutes.HandleFunc("", chatHandler.SendMessageHandler).Methods("POST")
	chatRoutes.HandleFunc("/{userId}", chatHandler.GetConversationHandler).Methods("GET")

	router.Use(middleware.LoggingMiddleware)

	cronjobs.StartNotificationCronJobs(notificationService)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	handler := c.Handler(router)

	fmt.Printf("Server running on port %s\n", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, handler))
}
