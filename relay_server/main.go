package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"guardchat/db"
	"guardchat/store"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

// Stores consumed by the relay handlers. Set once at startup, swapped for
// in-memory implementations in tests.
var (
	userStore    store.UserStore
	messageStore store.MessageStore
)

// Messaging reachability is a deliberate configuration switch, not an
// accident of which actions the router happens to dispatch.
var relayMessagingEnabled = true

func keyFunc(c *gin.Context) string {
	return c.ClientIP()
}

func rateLimitErrorHandler(c *gin.Context, info ratelimit.Info) {
	c.String(429, "Too many requests. Try again in "+time.Until(info.ResetTime).String())
}

func main() {
	_ = godotenv.Load()

	port := os.Getenv("RELAY_PORT")
	if port == "" {
		port = "8000"
	}
	dbName := os.Getenv("RELAY_DB_FILE")
	if dbName == "" {
		dbName = "./guardchat.db"
	}
	if os.Getenv("JWT_SECRET") == "" {
		log.Fatal("JWT_SECRET must be set")
	}
	if raw := os.Getenv("RELAY_MESSAGING_ENABLED"); raw == "0" || raw == "false" {
		relayMessagingEnabled = false
	}

	var err error
	db.RelayDB, err = db.InitSQLite(dbName)
	if err != nil {
		log.Fatal("Error opening relay database:", err)
	}
	defer db.CloseDB(db.RelayDB)

	sqliteStore, err := store.NewSQLiteStore(db.RelayDB)
	if err != nil {
		log.Fatal("Error ensuring relay schema:", err)
	}
	if err := sqliteStore.ResetOnlineFlags(); err != nil {
		log.Fatal("Error resetting online flags:", err)
	}
	userStore = sqliteStore
	messageStore = sqliteStore

	setAllowedWebSocketOrigins(parseAllowedOriginsFromEnv(os.Getenv("RELAY_ALLOWED_ORIGINS")))

	r := gin.Default()

	rateLimitStore := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{Rate: time.Second, Limit: 100})
	r.Use(ratelimit.RateLimiter(rateLimitStore, &ratelimit.Options{ErrorHandler: rateLimitErrorHandler, KeyFunc: keyFunc}))
	r.Use(cors.Default())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.GET("/ws", HandleSocket)

	r.POST("/api/signup", HandleAPISignup)
	r.POST("/api/login", HandleAPILogin)

	server := &http.Server{Addr: ":" + port, Handler: r}

	go func() {
		log.Printf("Starting relay on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down relay...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("relay forced shutdown: %v", err)
	}
}
