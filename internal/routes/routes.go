package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/xfans/internal/cache"
	"github.com/example/xfans/internal/chain"
	"github.com/example/xfans/internal/config"
	"github.com/example/xfans/internal/handlers"
	"github.com/example/xfans/internal/middleware"
	"github.com/example/xfans/internal/services"
)

// Deps carries the shared singletons every handler group draws from.
type Deps struct {
	DB       *gorm.DB
	Redis    *redis.Client
	Registry *chain.Registry
	Orders   *services.OrderService
	Tokens   *services.TokenService
	Log      *zap.SugaredLogger
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, cfg *config.Config, deps Deps) {
	store := cache.NewStore(deps.Redis, "xfans")
	limiter := cache.NewRateLimiter(deps.Redis, "xfans:rl", cfg.RateLimitRequests, cfg.RateLimitWindow)

	authHandler := handlers.NewAuthHandler(deps.DB, deps.Tokens)
	userHandler := handlers.NewUserHandler(deps.DB)
	postHandler := handlers.NewPostHandler(deps.DB, store, deps.Registry)
	orderHandler := handlers.NewOrderHandler(deps.DB, deps.Orders)
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Redis)

	jwtAuth := middleware.AuthMiddleware(cfg)
	webhookAuth := middleware.WebhookAuth(cfg.EventListenerAPIKey, cfg.EventListenerAPISecret)
	rateLimit := middleware.RateLimit(limiter, deps.Log)

	app.Get("/healthz", healthHandler.Check)

	api := app.Group("/api/v1")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", rateLimit, authHandler.Register)
	auth.Post("/login", rateLimit, authHandler.Login)
	auth.Post("/refresh", authHandler.Refresh)
	auth.Post("/logout", jwtAuth, authHandler.Logout)

	// Public post reads
	posts := api.Group("/posts")
	posts.Get("/", postHandler.ListPosts)
	posts.Get("/:id", postHandler.GetPost)

	// The status endpoint accepts both the listener's signed webhook and
	// an authenticated buyer closing their own order.
	api.Put("/orders/:id/status", middleware.EitherAuth(webhookAuth, jwtAuth), orderHandler.UpdateStatus)

	// Protected routes
	protected := api.Group("", jwtAuth)

	protected.Get("/users/me", userHandler.GetMe)
	protected.Put("/users/me", userHandler.UpdateMe)
	protected.Delete("/users/me", userHandler.DeleteMe)
	protected.Put("/users/settings", userHandler.UpdateSettings)

	protected.Post("/posts", postHandler.CreatePost)
	protected.Put("/posts/:id", postHandler.UpdatePost)
	protected.Delete("/posts/:id", postHandler.DeletePost)

	protected.Post("/orders", rateLimit, orderHandler.CreateOrder)
	protected.Get("/orders", rateLimit, orderHandler.ListMine)
	protected.Get("/orders/:id", orderHandler.GetOrder)
	protected.Get("/users/:address/orders", rateLimit, orderHandler.ListByWallet)

	admin := api.Group("/admin", jwtAuth, middleware.RequireAdmin())
	admin.Get("/orders", orderHandler.ListAll)
}
