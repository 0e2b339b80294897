package web

import (
	"time"

	"codeberg.org/mutker/tempstation/internal/journal"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

const defaultAttemptsLimit = 20

var validate = validator.New()

// Status is the /api/status payload. Temperatures are null until a valid
// reading exists.
type Status struct {
	OutsideTemperature *float64   `json:"outside_temperature"`
	InsideTemperature  *float64   `json:"inside_temperature"`
	LightLevel         *int       `json:"light_level"`
	LightLevels        int        `json:"light_levels"`
	NetworkReady       bool       `json:"network_ready"`
	ReadingReady       bool       `json:"reading_ready"`
	UpdatedAt          *time.Time `json:"updated_at"`
	FirmwareVersion    string     `json:"firmware_version"`
}

type attemptsQuery struct {
	Limit int `query:"limit" validate:"min=1,max=500"`
}

func (s *Server) status() Status {
	st := Status{
		LightLevels:     1,
		FirmwareVersion: s.src.Version,
	}

	if v, ok := s.src.Outside.Load(); ok {
		st.OutsideTemperature = &v
		if at := s.src.Outside.UpdatedAt(); !at.IsZero() {
			st.UpdatedAt = &at
		}
	}
	if s.src.Inside != nil {
		if v, ok := s.src.Inside.Load(); ok {
			st.InsideTemperature = &v
		}
	}
	if s.src.Light != nil {
		st.LightLevels = s.src.Light.LightLevels()
		if level, ok := s.src.Light.LightLevel(); ok {
			st.LightLevel = &level
		}
	}
	if s.src.Network != nil {
		st.NetworkReady = s.src.Network.IsSet()
	}
	if s.src.Ready != nil {
		st.ReadingReady = s.src.Ready.IsSet()
	}

	return st
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.status())
}

func (s *Server) handleAttempts(c *fiber.Ctx) error {
	q := attemptsQuery{Limit: defaultAttemptsLimit}
	if err := c.QueryParser(&q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if s.src.Journal == nil || !s.src.Journal.Enabled() {
		return c.JSON(fiber.Map{
			"enabled":  false,
			"attempts": []journal.Entry{},
		})
	}

	entries, err := s.src.Journal.Recent(c.UserContext(), q.Limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"enabled":  true,
		"attempts": entries,
	})
}
