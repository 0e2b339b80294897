package web

import (
	"embed"
	"fmt"
	"html"
	"os"
	"strconv"
	"strings"

	"codeberg.org/mutker/tempstation/internal/errors"
	"codeberg.org/mutker/tempstation/internal/reading"
)

const notAvailable = "N/A"

//go:embed assets/index.html assets/favicon.ico
var assets embed.FS

func loadTemplate(path string) (string, error) {
	errFactory := errors.New()

	if path == "" {
		raw, err := assets.ReadFile("assets/index.html")
		if err != nil {
			return "", errFactory.Wrap(ErrLoadTemplate, err)
		}
		return string(raw), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", errFactory.Wrap(ErrLoadTemplate, err).WithData(path)
	}
	return string(raw), nil
}

func favicon() ([]byte, error) {
	return assets.ReadFile("assets/favicon.ico")
}

// FormatTemperature renders a reading as the status page shows it.
func FormatTemperature(v float64) string {
	if !reading.Valid(v) {
		return notAvailable
	}
	return fmt.Sprintf("%.2f°C", v)
}

// Render fills the page placeholders from the current state.
func (s *Server) Render() string {
	outside, _ := s.src.Outside.Load()
	inside := reading.NoData
	if s.src.Inside != nil {
		inside, _ = s.src.Inside.Load()
	}

	lightLevel, lightLevels := notAvailable, "1"
	if s.src.Light != nil {
		lightLevels = strconv.Itoa(s.src.Light.LightLevels())
		if level, ok := s.src.Light.LightLevel(); ok {
			lightLevel = strconv.Itoa(level + 1)
		}
	}

	logs := ""
	if s.src.Logs != nil {
		logs = html.EscapeString(s.src.Logs.String())
	}

	return strings.NewReplacer(
		"{INSIDE_TEMPERATURE}", FormatTemperature(inside),
		"{OUTSIDE_TEMPERATURE}", FormatTemperature(outside),
		"{LIGHT_LEVEL}", lightLevel,
		"{LIGHT_LEVELS_AMOUNT}", lightLevels,
		"{FIRMWARE_VERSION}", html.EscapeString(s.src.Version),
		"{LOGS}", logs,
	).Replace(s.template)
}
