// Package httpapi exposes the user, friend and avatar services over HTTP.
package httpapi

import (
	"context"
	"time"

	"github.com/expensebook/expensebook/internal/logging"
	"github.com/expensebook/expensebook/internal/server/auth"
	"github.com/expensebook/expensebook/internal/server/config"
	"github.com/expensebook/expensebook/internal/server/models"
	"github.com/expensebook/expensebook/internal/server/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const shutdownTimeout = 5 * time.Second

type UserService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.UserView, error)
	Login(ctx context.Context, in services.LoginInput) (*services.LoginResult, error)
	Logout(ctx context.Context, userID string) error
	RefreshAccessToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	UpdateProfile(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.UserView, error)
	CurrentUser(ctx context.Context, userID string) (*models.UserView, error)
}

type FriendService interface {
	CreateFriend(ctx context.Context, ownerID string, in services.CreateFriendInput) (*models.Friend, error)
	ListFriends(ctx context.Context, ownerID string) ([]models.Friend, error)
	FindFriends(ctx context.Context, ownerID, name string) ([]models.Friend, error)
}

type AvatarService interface {
	IssueUploadURL(ctx context.Context, userID string) (*services.AvatarUpload, error)
	AvatarURL(ctx context.Context, userID string) (string, error)
}

// TokenVerifier turns an access token into the identity it was issued for.
type TokenVerifier interface {
	VerifyAccess(token string) (auth.Identity, error)
}

// Pinger reports database reachability; *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps groups the collaborators the handlers call into.
type Deps struct {
	Users   UserService
	Friends FriendService
	Avatars AvatarService
	Tokens  TokenVerifier
	DB      Pinger
}

type Server struct {
	address string
	app     *fiber.App
	logger  logging.Logger
	deps    Deps
	cookies cookieSettings
}

func NewServer(cfg *config.Config, l logging.Logger, deps Deps) *Server {
	s := &Server{
		address: cfg.EndpointAddrHTTP,
		logger:  l.With("module", "http_server"),
		deps:    deps,
		cookies: cookieSettings{
			secure:     cfg.CookieSecure,
			accessTTL:  cfg.AccessTokenValidityDuration,
			refreshTTL: cfg.RefreshTokenValidityDuration,
		},
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "expensebook",
		DisableStartupMessage: true,
		UnescapePath:          true,
		ErrorHandler:          s.errorHandler,
	})

	s.app.Use(recover.New())
	s.app.Use(s.requestLogger)
	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigin,
		// browsers reject credentialed requests to a wildcard origin
		AllowCredentials: cfg.CORSOrigin != "*",
		AllowMethods:     "GET,POST,PATCH,OPTIONS",
		AllowHeaders:     "Content-Type,Authorization",
	}))

	s.registerRoutes()

	return s
}

// App returns the underlying fiber application, mostly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) registerRoutes() {
	s.app.Get("/health", s.health)

	users := s.app.Group("/api/v1/users")

	users.Post("/register", s.register)
	users.Post("/login", s.login)
	users.Post("/refresh-token", s.refreshToken)

	// secured routes
	users.Post("/logout", s.accessTokenGuard, s.logout)
	users.Post("/change-password", s.accessTokenGuard, s.changePassword)
	users.Patch("/update-details", s.accessTokenGuard, s.updateDetails)
	users.Get("/current-user", s.accessTokenGuard, s.currentUser)
	users.Post("/create-friend", s.accessTokenGuard, s.createFriend)
	users.Get("/friends", s.accessTokenGuard, s.listFriends)
	users.Get("/friend/:friendname", s.accessTokenGuard, s.findFriends)
	users.Post("/avatar/upload-url", s.accessTokenGuard, s.avatarUploadURL)
	users.Get("/avatar", s.accessTokenGuard, s.avatarURL)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := s.app.Listen(s.address); err != nil {
		return err
	}

	return nil
}

// requestLogger logs one line per request. Handler errors are rendered here
// so the logged status is the one the client sees.
func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()

	if err := c.Next(); err != nil {
		if herr := s.errorHandler(c, err); herr != nil {
			return herr
		}
	}

	s.logger.Info(c.UserContext(), "request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"latency", time.Since(start).String(),
	)
	return nil
}
