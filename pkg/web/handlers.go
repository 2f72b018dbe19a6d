package web

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-g1/pkg/actions"
	"github.com/teslashibe/go-g1/pkg/orchestrator"
)

const indexHTML = `<!doctype html>
<html><head><meta charset="utf-8"><title>G1 control</title></head>
<body>
<h1>G1 control</h1>
<button onclick="fetch('/api/interrupt',{method:'POST'})">STOP</button>
<pre id="status"></pre>
<script>
const ws = new WebSocket((location.protocol==='https:'?'wss://':'ws://')+location.host+'/ws/status');
ws.onmessage = e => document.getElementById('status').textContent = e.data;
</script>
</body></html>`

func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Type("html", "utf-8")
	return c.SendString(indexHTML)
}

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"status": "error", "msg": msg})
}

// handleInterrupt stops everything immediately, bypassing the command queue.
func (s *Server) handleInterrupt(c *fiber.Ctx) error {
	s.ctrl.StopAll(c.UserContext())
	return c.JSON(fiber.Map{"status": "stopped"})
}

// ModeRequest is the body of POST /api/set_mode.
type ModeRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleSetMode(c *fiber.Ctx) error {
	var req ModeRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid body")
	}
	m, err := orchestrator.ParseMode(req.Mode)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	s.ctrl.SetMode(m)
	return c.JSON(fiber.Map{"status": "success", "mode": m})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.Status())
}

func (s *Server) handleActions(c *fiber.Ctx) error {
	out := make([]actions.Intent, 0, len(s.cfg.Catalog))
	for _, id := range s.cfg.Catalog.IDs() {
		out = append(out, s.cfg.Catalog[id])
	}
	return c.JSON(out)
}

func (s *Server) handleTurns(c *fiber.Ctx) error {
	if s.cfg.History == nil {
		return c.JSON([]any{})
	}
	n := c.QueryInt("n", 20)
	turns, err := s.cfg.History.Recent(c.UserContext(), n)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(turns)
}

// submit queues cmd and maps queue errors to HTTP statuses.
func (s *Server) submit(c *fiber.Ctx, cmd orchestrator.Command) error {
	err := s.ctrl.Submit(cmd)
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"status": "queued", "id": cmd.ID})
	case errors.Is(err, orchestrator.ErrQueueFull):
		return errorJSON(c, fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, orchestrator.ErrEmptyText):
		return errorJSON(c, fiber.StatusBadRequest, "No text provided")
	default:
		return errorJSON(c, fiber.StatusInternalServerError, err.Error())
	}
}

// SpeakRequest is the body of POST /api/director/speak.
type SpeakRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSpeak(c *fiber.Ctx) error {
	var req SpeakRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		return errorJSON(c, fiber.StatusBadRequest, "No text provided")
	}
	return s.submit(c, orchestrator.Speak(req.Text))
}

// ActionRequest is the body of POST /api/director/action. Type is accepted
// as an alias of Group.
type ActionRequest struct {
	Group string `json:"group"`
	Type  string `json:"type"`
	Name  string `json:"name"`
	ID    *int   `json:"id"`
}

func (s *Server) handleAction(c *fiber.Ctx) error {
	raw := c.Body()
	if err := validateAction(raw); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	var req ActionRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	group := req.Group
	if group == "" {
		group = req.Type
	}
	g, err := actions.ParseGroup(group)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	return s.submit(c, orchestrator.Act(actions.Descriptor{Group: g, Name: req.Name, ID: req.ID}))
}

// PlayRequest is the body of POST /api/director/play.
type PlayRequest struct {
	Path string `json:"path"`
}

func (s *Server) handlePlay(c *fiber.Ctx) error {
	var req PlayRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Path) == "" {
		return errorJSON(c, fiber.StatusBadRequest, "No path provided")
	}
	path, err := resolveAudioPath(s.cfg.AudioDir, req.Path)
	if err != nil {
		s.logger.Warn("play rejected", "path", req.Path, "error", err)
		return errorJSON(c, fiber.StatusForbidden, err.Error())
	}
	return s.submit(c, orchestrator.Play(path))
}

var (
	errPlayDisabled    = errors.New("web: playback by path is disabled")
	errOutsideAudioDir = errors.New("web: path is outside the audio directory")
)

// resolveAudioPath maps p onto a file under root. Relative paths are taken
// from root; symlinks are followed before the containment check.
func resolveAudioPath(root, p string) (string, error) {
	if root == "" {
		return "", errPlayDisabled
	}
	base, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	if r, err := filepath.EvalSymlinks(base); err == nil {
		base = r
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	full := filepath.Clean(p)
	if r, err := filepath.EvalSymlinks(full); err == nil {
		full = r
	}
	rel, err := filepath.Rel(base, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errOutsideAudioDir
	}
	return full, nil
}
