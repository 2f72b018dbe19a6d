package executor

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-g1/pkg/actions"
	"github.com/teslashibe/go-g1/pkg/audioio"
	"github.com/teslashibe/go-g1/pkg/dispatch"
)

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"status": "error", "msg": msg})
}

// SpeakRequest is the body of POST /cmd/speak.
type SpeakRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSpeak(c *fiber.Ctx) error {
	var req SpeakRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid JSON body")
		}
	}
	if req.Text == "" {
		return fail(c, fiber.StatusBadRequest, "No text provided")
	}

	s.sig.Clear()
	if err := s.player.Speak(c.UserContext(), req.Text); err != nil {
		s.logger.Error("tts failed", "error", err)
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"status": "success"})
}

func (s *Server) handlePlayWAV(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "No file part")
	}

	name := filepath.Base(fh.Filename)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "upload.wav"
	}
	path := filepath.Join(s.cfg.UploadDir, name)
	if err := c.SaveFile(fh, path); err != nil {
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}

	wav, err := audioio.ReadWAVFile(path)
	if err != nil || !wav.IsRobotFormat() {
		return fail(c, fiber.StatusBadRequest, "Invalid wav format (need 16k mono)")
	}

	g := s.player.Schedule(wav.Data)
	s.logger.Info("wav scheduled", "file", name, "duration", wav.Duration(), "generation", g)
	return c.JSON(fiber.Map{"status": "success"})
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	s.sig.Raise()
	s.player.Stop(c.UserContext())
	return c.JSON(fiber.Map{"status": "success"})
}

// ActionRequest is the body of POST /cmd/action. Type is accepted as an alias
// of Group. ID may be a number or a numeric string.
type ActionRequest struct {
	Group string `json:"group"`
	Type  string `json:"type"`
	Name  string `json:"name"`
	ID    any    `json:"id"`
	List  bool   `json:"list"`
}

func (s *Server) handleAction(c *fiber.Ctx) error {
	var req ActionRequest
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid JSON body")
		}
	}

	raw := req.Group
	if raw == "" {
		raw = req.Type
	}

	if req.List {
		return s.listActions(c, raw)
	}

	group, err := actions.ParseGroup(raw)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	desc := actions.Descriptor{Group: group, Name: req.Name}
	if req.Name == "" && req.ID != nil {
		id, err := parseID(req.ID)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid action id")
		}
		desc.ID = &id
	}

	s.sig.Clear()
	r, err := s.dispatcher.Dispatch(c.UserContext(), desc)

	var re *actions.ResolveError
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"status": "success", "group": r.Group, "action": r.Name, "id": r.ID})
	case errors.As(err, &re):
		return fail(c, fiber.StatusBadRequest, re.Error())
	case errors.Is(err, dispatch.ErrInterrupted):
		return c.JSON(fiber.Map{"status": "interrupted", "group": r.Group, "action": r.Name, "id": r.ID})
	default:
		s.logger.Error("action failed", "action", r.Name, "error", err)
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}
}

func (s *Server) listActions(c *fiber.Ctx, raw string) error {
	switch strings.ToLower(raw) {
	case "arm":
		return c.JSON(fiber.Map{"status": "success", "group": "arm", "actions": s.dispatcher.Catalog(actions.GroupArm)})
	case "loco", "locomotion":
		return c.JSON(fiber.Map{"status": "success", "group": "loco", "actions": s.dispatcher.Catalog(actions.GroupLoco)})
	}
	return c.JSON(fiber.Map{"status": "success", "actions": fiber.Map{
		"arm":  s.dispatcher.Catalog(actions.GroupArm),
		"loco": s.dispatcher.Catalog(actions.GroupLoco),
	}})
}

func parseID(v any) (int, error) {
	switch id := v.(type) {
	case float64:
		if id != math.Trunc(id) {
			return 0, fmt.Errorf("non-integer id %v", id)
		}
		return int(id), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(id))
	}
	return 0, fmt.Errorf("unsupported id type %T", v)
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":     "online",
		"sdk_ready":  s.dev != nil,
		"arm_ready":  s.dev != nil,
		"loco_ready": s.dev != nil,
		"generation": s.player.Generation(),
		"interrupt":  s.sig.IsSet(),
	})
}
