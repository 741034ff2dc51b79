// Package httpapi implements the primary external interface: a small HTTP server exposing /api/put and
// /api/get against a Router, built on fiber with the same security/observability middleware stack real
// fiber-based services in this codebase ship with.
package httpapi

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/shoalkv/shoal/pkg/router"
)

// Server wraps a fiber.App serving the Router's PUT/GET contract.
type Server struct {
	app    *fiber.App
	router *router.Router
}

// New builds a Server bound to r. Call Listen to start serving.
func New(r *router.Router) *Server {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{app: app, router: r}
	app.Post("/api/put", s.handlePut)
	app.Get("/api/get", s.handleGet)
	return s
}

// Listen starts the fiber app on addr, blocking until the server stops.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the fiber app.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

type putKey struct {
	Key   string   `json:"key"`
	Value []string `json:"value"`
}

type putRequest struct {
	NewKeys []putKey `json:"newKeys"`
}

func (s *Server) handlePut(c *fiber.Ctx) error {
	var req putRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON")
	}
	if len(req.NewKeys) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "newKeys must not be empty")
	}

	entries := make([]router.Entry, len(req.NewKeys))
	for i, k := range req.NewKeys {
		entries[i] = router.Entry{Key: k.Key, Values: k.Value}
	}

	if err := s.router.Put(c.Context(), entries); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.Status(fiber.StatusOK).SendString("Keys added successfully...")
}

type getRequest struct {
	Keys []string `json:"keys"`
}

type getResponse struct {
	Value [][]string `json:"value"`
}

func (s *Server) handleGet(c *fiber.Ctx) error {
	var req getRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON")
	}

	results, err := s.router.Get(c.Context(), req.Keys)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	resp := getResponse{Value: make([][]string, len(results))}
	for i, r := range results {
		if !r.Found {
			resp.Value[i] = []string{}
			continue
		}
		resp.Value[i] = strings.Split(r.Value, ",")
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}
