package authkit

import (
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
)

// ServerConfig configures the convenience HTTP server.
type ServerConfig struct {
	// PathPrefix for auth routes (default: "/auth")
	PathPrefix string

	// Middleware applied to the auth route group
	Middleware []router.MiddlewareFunc

	// Debug enables fiber route printing and controller payload dumps
	Debug bool

	Logger Logger
}

// Server bundles a fiber-backed router with the auth controller mounted.
type Server struct {
	srv        router.Server[*fiber.App]
	auther     *Auther
	clients    *RouterClients
	controller *HTTPController
	middleware *AccessMiddleware
	config     ServerConfig
}

// NewServer builds a fiber application with the auth routes mounted under
// PathPrefix. The caller owns additional routes and the listen call.
func NewServer(auther *Auther, stores SessionStores, cfg ServerConfig) *Server {
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = "/auth"
	}
	if cfg.Logger == nil {
		cfg.Logger = defLogger{}
	}

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			EnablePrintRoutes: cfg.Debug,
			StrictRouting:     false,
		}))
	})

	clients := NewRouterClients(stores, auther.Config())

	controller := NewHTTPController(auther, clients, HTTPConfig{
		Debug:  cfg.Debug,
		Logger: cfg.Logger,
	})

	middleware := NewAccessMiddleware(
		auther.Sessions(),
		clients,
		auther.Config(),
		WithMiddlewareLogger(cfg.Logger),
	)

	group := srv.Router().Group(cfg.PathPrefix)
	for _, mw := range cfg.Middleware {
		group.Use(mw)
	}
	controller.RegisterRoutes(group)

	return &Server{
		srv:        srv,
		auther:     auther,
		clients:    clients,
		controller: controller,
		middleware: middleware,
		config:     cfg,
	}
}

// Router exposes the underlying router for additional routes.
func (s *Server) Router() router.Router[*fiber.App] {
	return s.srv.Router()
}

// Clients exposes the request client factory.
func (s *Server) Clients() *RouterClients {
	return s.clients
}

// Controller exposes the mounted HTTP controller.
func (s *Server) Controller() *HTTPController {
	return s.controller
}

// Protect returns the access middleware for guarding caller routes.
func (s *Server) Protect() *AccessMiddleware {
	return s.middleware
}

// Serve starts listening on the given address.
func (s *Server) Serve(addr string) error {
	s.config.Logger.Info("auth server listening", "addr", addr)
	return s.srv.Serve(addr)
}
