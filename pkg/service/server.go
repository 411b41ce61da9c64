package service

import (
	"strconv"

	v "github.com/cohesivestack/valgo"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/theapemachine/neurostore/pkg/auth"
	"github.com/theapemachine/neurostore/pkg/engram"
	"github.com/theapemachine/neurostore/pkg/errors"
	"github.com/theapemachine/neurostore/pkg/memory"
	"github.com/theapemachine/neurostore/pkg/stores"
)

// Default signal boost for an explicit reinforce call.
const defaultBoost = 0.1

/*
Server exposes the memory engine over HTTP.  Every route delegates to
the manager; the server owns only transport concerns: binding, request
validation, auth and status mapping.
*/
type Server struct {
	app     *fiber.App
	manager *memory.Manager
	auth    *auth.Service
	addr    string
}

type ServerOption func(*Server)

func NewServer(manager *memory.Manager, options ...ServerOption) *Server {
	server := &Server{
		app: fiber.New(fiber.Config{
			AppName:      "NeuroStore",
			ServerHeader: "NeuroStore-Server",
		}),
		manager: manager,
		addr:    ":3210",
	}

	for _, option := range options {
		option(server)
	}

	server.routes()

	return server
}

func WithAddr(addr string) ServerOption {
	return func(server *Server) {
		if addr != "" {
			server.addr = addr
		}
	}
}

func WithAuth(service *auth.Service) ServerOption {
	return func(server *Server) {
		server.auth = service
	}
}

func (server *Server) Start() error {
	return server.app.Listen(server.addr, fiber.ListenConfig{
		DisableStartupMessage: true,
	})
}

/*
App exposes the underlying fiber app so tests can drive requests
without binding a port.
*/
func (server *Server) App() *fiber.App {
	return server.app
}

func (server *Server) routes() {
	server.app.Use(logger.New(logger.Config{
		// Skip logging for the health endpoint to reduce noise
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/api/v1/health"
		},
	}), healthcheck.New())

	api := server.app.Group("/api/v1")

	if server.auth != nil {
		api.Use(server.requireAuth)
	}

	api.Post("/engrams", server.handleAddMemory)
	api.Get("/engrams", server.handleListEngrams)
	api.Get("/engrams/:id", server.handleGetEngram)
	api.Patch("/engrams/:id", server.handleUpdateEngram)
	api.Delete("/engrams/:id", server.handleDeleteEngram)
	api.Post("/engrams/search", server.handleSearch)
	api.Post("/engrams/:id/reinforce", server.handleReinforce)
	api.Post("/decay", server.handleDecay)
	api.Post("/owners/:ownerId/snapshot", server.handleSnapshot)
	api.Post("/owners/:ownerId/restore", server.handleRestore)
	api.Get("/stats", server.handleStats)
	api.Get("/health", server.handleHealth)
}

/*
requireAuth rejects throttled clients before any token parsing, then
resolves the bearer token to the owner id it was issued for.
*/
func (server *Server) requireAuth(ctx fiber.Ctx) error {
	if !server.auth.Allow() {
		return ctx.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "rate limit exceeded",
		})
	}

	owner, err := server.auth.Authenticate(ctx.Get("Authorization"))

	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	ctx.Locals("ownerId", owner)

	return ctx.Next()
}

func (server *Server) handleAddMemory(ctx fiber.Ctx) error {
	var input engram.CreateInput

	if err := ctx.Bind().Body(&input); err != nil {
		return badRequest(ctx, "invalid request body: "+err.Error())
	}

	val := v.Is(v.String(input.OwnerID, "ownerId").Not().Blank()).
		Is(v.String(input.Content, "content").Not().Blank())

	if !val.Valid() {
		return ctx.Status(fiber.StatusBadRequest).JSON(val.Error())
	}

	result, err := server.manager.AddMemory(ctx.Context(), input)

	if err != nil {
		// A mid-call failure still reports the facts stored before the
		// break, so the client can see what was committed.
		if result != nil {
			return ctx.Status(statusFor(err)).JSON(fiber.Map{
				"error":  err.Error(),
				"result": result,
			})
		}

		return fail(ctx, err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(result)
}

func (server *Server) handleListEngrams(ctx fiber.Ctx) error {
	ownerID := ctx.Query("ownerId")

	val := v.Is(v.String(ownerID, "ownerId").Not().Blank())

	if !val.Valid() {
		return ctx.Status(fiber.StatusBadRequest).JSON(val.Error())
	}

	opts := stores.ListOptions{
		Limit:  queryInt(ctx, "limit"),
		Offset: queryInt(ctx, "offset"),
	}

	if strand := ctx.Query("strand"); strand != "" {
		opts.Strand = engram.ParseStrand(strand)
	}

	engrams, total, err := server.manager.ListEngrams(ctx.Context(), ownerID, opts)

	if err != nil {
		return fail(ctx, err)
	}

	return ctx.JSON(fiber.Map{"engrams": engrams, "total": total})
}

func (server *Server) handleGetEngram(ctx fiber.Ctx) error {
	eng, err := server.manager.GetEngram(ctx.Context(), ctx.Params("id"))

	if err != nil {
		return fail(ctx, err)
	}

	return ctx.JSON(eng)
}

func (server *Server) handleUpdateEngram(ctx fiber.Ctx) error {
	var input engram.UpdateInput

	if err := ctx.Bind().Body(&input); err != nil {
		return badRequest(ctx, "invalid request body: "+err.Error())
	}

	eng, err := server.manager.UpdateEngram(ctx.Context(), ctx.Params("id"), input)

	if err != nil {
		return fail(ctx, err)
	}

	return ctx.JSON(eng)
}

func (server *Server) handleDeleteEngram(ctx fiber.Ctx) error {
	deleted, err := server.manager.DeleteEngram(ctx.Context(), ctx.Params("id"))

	if err != nil {
		return fail(ctx, err)
	}

	if !deleted {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "engram not found",
		})
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}

func (server *Server) handleSearch(ctx fiber.Ctx) error {
	var query engram.SearchQuery

	if err := ctx.Bind().Body(&query); err != nil {
		return badRequest(ctx, "invalid request body: "+err.Error())
	}

	val := v.Is(v.String(query.OwnerID, "ownerId").Not().Blank()).
		Is(v.String(query.Query, "query").Not().Blank())

	if !val.Valid() {
		return ctx.Status(fiber.StatusBadRequest).JSON(val.Error())
	}

	result, err := server.manager.Search(ctx.Context(), query)

	if err != nil {
		return fail(ctx, err)
	}

	return ctx.JSON(result)
}

func (server *Server) handleReinforce(ctx fiber.Ctx) error {
	var request struct {
		Boost *float64 `json:"boost,omitempty"`
	}

	if len(ctx.Body()) > 0 {
		if err := ctx.Bind().Body(&request); err != nil {
			return badRequest(ctx, "invalid request body: "+err.Error())
		}
	}

	boost := defaultBoost

	if request.Boost != nil {
		boost = *request.Boost
	}

	val := v.Is(v.Number(boost, "boost").GreaterThan(0.0))

	if !val.Valid() {
		return ctx.Status(fiber.StatusBadRequest).JSON(val.Error())
	}

	eng, err := server.manager.ReinforceEngram(ctx.Context(), ctx.Params("id"), boost)

	if err != nil {
		return fail(ctx, err)
	}

	return ctx.JSON(eng)
}

func (server *Server) handleDecay(ctx fiber.Ctx) error {
	var request struct {
		OwnerID string `json:"ownerId"`
	}

	if err := ctx.Bind().Body(&request); err != nil {
		return badRequest(ctx, "invalid request body: "+err.Error())
	}

	val := v.Is(v.String(request.OwnerID, "ownerId").Not().Blank())

	if !val.Valid() {
		return ctx.Status(fiber.StatusBadRequest).JSON(val.Error())
	}

	affected, err := server.manager.RunDecay(ctx.Context(), request.OwnerID)

	if err != nil {
		return fail(ctx, err)
	}

	return ctx.JSON(fiber.Map{"affected": affected})
}

func (server *Server) handleSnapshot(ctx fiber.Ctx) error {
	key, err := server.manager.SnapshotOwner(ctx.Context(), ctx.Params("ownerId"))

	if err != nil {
		return fail(ctx, err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{"key": key})
}

func (server *Server) handleRestore(ctx fiber.Ctx) error {
	var request struct {
		Key string `json:"key"`
	}

	if err := ctx.Bind().Body(&request); err != nil {
		return badRequest(ctx, "invalid request body: "+err.Error())
	}

	val := v.Is(v.String(request.Key, "key").Not().Blank())

	if !val.Valid() {
		return ctx.Status(fiber.StatusBadRequest).JSON(val.Error())
	}

	restored, err := server.manager.RestoreOwner(
		ctx.Context(), ctx.Params("ownerId"), request.Key,
	)

	if err != nil {
		return fail(ctx, err)
	}

	return ctx.JSON(fiber.Map{"restored": restored})
}

func (server *Server) handleStats(ctx fiber.Ctx) error {
	stats, err := server.manager.GetStats(ctx.Context())

	if err != nil {
		return fail(ctx, err)
	}

	return ctx.JSON(stats)
}

func (server *Server) handleHealth(ctx fiber.Ctx) error {
	health, err := server.manager.HealthCheck(ctx.Context())

	if err != nil || !health.OK {
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(health)
	}

	return ctx.JSON(health)
}

func queryInt(ctx fiber.Ctx, key string) int {
	value, err := strconv.Atoi(ctx.Query(key))

	if err != nil {
		return 0
	}

	return value
}

func badRequest(ctx fiber.Ctx, message string) error {
	return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, errors.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, errors.ErrProvider):
		return fiber.StatusBadGateway
	}

	return fiber.StatusInternalServerError
}

/*
fail maps a typed error to its HTTP status.
*/
func fail(ctx fiber.Ctx, err error) error {
	return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
}
