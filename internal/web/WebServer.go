package web

import (
	"embed"
	"errors"
	"io/fs"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"

	"github.com/NeRF-or-Nothing/panowalk/internal/common"
	"github.com/NeRF-or-Nothing/panowalk/internal/log"
	"github.com/NeRF-or-Nothing/panowalk/internal/models/hotspot"
	"github.com/NeRF-or-Nothing/panowalk/internal/models/navigation"
	"github.com/NeRF-or-Nothing/panowalk/internal/models/scene"
	"github.com/NeRF-or-Nothing/panowalk/internal/services"
)

//go:embed viewer
var viewerFS embed.FS

type WebServer struct {
	app      *fiber.App
	viewer   *services.ViewerService
	frames   *services.FrameBroadcaster
	registry *scene.Registry
	assets   fs.FS
	validate *validator.Validate
	logger   *log.Logger
	// closed on shutdown so open frame streams end
	stopChan chan struct{}
}

func NewWebServer(
	viewer *services.ViewerService,
	frames *services.FrameBroadcaster,
	registry *scene.Registry,
	assets fs.FS,
	corsOrigins string,
	logger *log.Logger,
) *WebServer {
	app := fiber.New(fiber.Config{
		AppName:               "panowalk",
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: corsOrigins,
		AllowHeaders: "Content-Type",
	}))

	return &WebServer{
		app:      app,
		viewer:   viewer,
		frames:   frames,
		registry: registry,
		assets:   assets,
		validate: newValidator(registry),
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

func (s *WebServer) Run(addr string) error {
	s.SetupRoutes()
	s.logger.Infof("Starting web server on %s", addr)
	return s.app.Listen(addr)
}

// Shutdown ends open frame streams and stops the server.
func (s *WebServer) Shutdown() error {
	close(s.stopChan)
	return s.app.Shutdown()
}

func (s *WebServer) SetupRoutes() {
	s.app.Get("/", s.getViewerFile("viewer/index.html", fiber.MIMETextHTMLCharsetUTF8))
	s.app.Get("/viewer.js", s.getViewerFile("viewer/viewer.js", fiber.MIMEApplicationJavaScriptCharsetUTF8))
	s.app.Use("/assets", filesystem.New(filesystem.Config{
		Root:   http.FS(s.assets),
		MaxAge: 3600,
	}))

	api := s.app.Group("/api")
	api.Get("/scenes", s.getScenes)
	api.Get("/scenes/:id", s.getScene)
	api.Get("/frame", s.getFrame)
	api.Get("/frames", s.streamFrames)
	api.Post("/hotspots/:direction/:event", s.hotspotEvent)
	api.Post("/navigate", s.navigate)
	api.Post("/client-log", s.clientLog)

	s.app.Get("/routes", s.getRoutes)
	s.app.Get("/health", s.healthCheck)
}

func (s *WebServer) getViewerFile(name, contentType string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		data, err := viewerFS.ReadFile(name)
		if err != nil {
			s.logger.Errorf("Viewer file %s missing: %v", name, err)
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "viewer unavailable"})
		}
		c.Set(fiber.HeaderContentType, contentType)
		return c.Status(http.StatusOK).Send(data)
	}
}

func (s *WebServer) getScenes(c *fiber.Ctx) error {
	s.logger.Debug("Get scenes request received")
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"head":   s.registry.Head().ID,
		"scenes": s.registry.Scenes(),
	})
}

// getScene returns one scene with its resolved hotspot placements.
func (s *WebServer) getScene(c *fiber.Ctx) error {
	s.logger.Debug("Get scene request received")

	var req common.SceneRequest
	if err := s.validateRequest(c, &req); err != nil {
		s.logger.Info("Get scene request validation failed: ", err.Error())
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	sc, err := s.registry.Lookup(scene.ID(req.ID))
	if err != nil {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}

	placements := hotspot.ResolveBoth(sc)
	hotspots := make([]fiber.Map, 0, len(placements))
	for _, p := range placements {
		hotspots = append(hotspots, fiber.Map{
			"direction": p.Direction,
			"target_id": p.TargetID,
			"enabled":   p.Enabled(),
			"position":  p.Position,
			"rotation":  p.Rotation,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"scene":    sc,
		"hotspots": hotspots,
	})
}

func (s *WebServer) getFrame(c *fiber.Ctx) error {
	frame, err := s.viewer.Frame(c.UserContext())
	if err != nil {
		return s.viewerError(c, err)
	}
	return c.Status(http.StatusOK).JSON(frame)
}

func (s *WebServer) hotspotEvent(c *fiber.Ctx) error {
	var req common.HotspotEventRequest
	if err := s.validateRequest(c, &req); err != nil {
		s.logger.Info("Hotspot event validation failed: ", err.Error())
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	direction, err := hotspot.ParseDirection(req.Direction)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	kind, err := services.ParseEventKind(req.Event)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	res, frame, err := s.viewer.HandleHotspot(c.UserContext(), direction, kind)
	if err != nil {
		return s.viewerError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"consumed": res.Consumed,
		"frame":    frame,
	})
}

func (s *WebServer) navigate(c *fiber.Ctx) error {
	s.logger.Info("Navigate request received")

	var req common.NavigateRequest
	if err := s.validateRequest(c, &req); err != nil {
		s.logger.Info("Navigate request validation failed: ", err.Error())
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	frame, err := s.viewer.JumpTo(c.UserContext(), scene.ID(req.SceneID))
	if err != nil {
		return s.viewerError(c, err)
	}
	return c.Status(http.StatusOK).JSON(frame)
}

func (s *WebServer) clientLog(c *fiber.Ctx) error {
	var req common.ClientLogRequest
	if err := s.validateRequest(c, &req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	client := s.logger.With("client", c.IP())
	switch req.Level {
	case "debug":
		client.Debug(req.Message)
	case "info":
		client.Info(req.Message)
	case "warn":
		client.Warn(req.Message)
	default:
		client.Error(req.Message)
	}
	return c.SendStatus(http.StatusNoContent)
}

// viewerError maps a viewer failure onto an HTTP status.
func (s *WebServer) viewerError(c *fiber.Ctx, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, navigation.ErrUnknownScene):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrViewerStopped):
		status = http.StatusServiceUnavailable
	case errors.Is(err, scene.ErrSceneNotFound):
		s.logger.Errorf("Scene registry is inconsistent: %v", err)
	default:
		s.logger.Errorf("Viewer request failed: %v", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func (s *WebServer) getRoutes(c *fiber.Ctx) error {
	s.logger.Info("Get routes request received")
	routes := s.app.GetRoutes(true)
	return c.Status(http.StatusOK).JSON(routes)
}

func (s *WebServer) healthCheck(c *fiber.Ctx) error {
	s.logger.Debug("Health check request received")
	return c.SendString("OK")
}
