package server

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"umkmrag/app/api"
	"umkmrag/app/middleware"
)

// PDF catalogs are usually a few MB; fiber's default limit is 4 MB.
const bodyLimit = 64 << 20

type Deps struct {
	Chat   api.Asker
	Admin  api.Admin
	Models api.ModelSwitcher
}

type Server struct {
	listenAddr string
	logger     *log.Logger
	app        *fiber.App
}

func NewServer(addr, corsOrigins string, deps Deps, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithPrefix("http")

	var (
		app = fiber.New(fiber.Config{
			ErrorHandler:          api.NewErrorHandler(logger),
			BodyLimit:             bodyLimit,
			DisableStartupMessage: true,
		})
		checkHandler = api.NewCheckHandler()
		chatHandler  = api.NewChatHandler(deps.Chat)
		adminHandler = api.NewAdminHandler(deps.Admin)
		modelHandler = api.NewModelHandler(deps.Models)
		admin        = app.Group("/admin")
	)

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{AllowOrigins: corsOrigins}))
	app.Use(middleware.RequestLogger(logger))

	app.Get("/health", checkHandler.HandleHealthy)
	app.Get("/chat", chatHandler.HandleChat)
	app.Post("/chat", chatHandler.HandleChat)

	admin.Get("/status", adminHandler.HandleStatus)
	admin.Post("/upload", adminHandler.HandleUpload)
	admin.Get("/model", modelHandler.HandleGetModel)
	admin.Put("/model", modelHandler.HandleSetModel)

	return &Server{
		listenAddr: addr,
		logger:     logger,
		app:        app,
	}
}

func (s *Server) App() *fiber.App {
	return s.app
}

// Run blocks until the listener stops.
func (s *Server) Run() error {
	s.logger.Info("server started", "addr", s.listenAddr)
	if err := s.app.Listen(s.listenAddr); err != nil {
		s.logger.Error("error to start server", "error", err.Error())
		return err
	}
	return nil
}

func (s *Server) Stop() {
	if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
		s.logger.Error("server shutdown", "err", err)
	}
	s.logger.Info("server stopped")
}
