package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

const (
	colorModeAutoStringConstant          = "auto"
	colorModeAlwaysStringConstant        = "always"
	colorModeNeverStringConstant         = "never"
	unsupportedColorModeTemplateConstant = "unsupported color mode: %s"
	lineTerminatorConstant               = "\n"
	brightRedColorConstant               = "9"
	brightGreenColorConstant             = "10"
	brightYellowColorConstant            = "11"
	brightBlueColorConstant              = "12"
	brightMagentaColorConstant           = "13"
	brightCyanColorConstant              = "14"
	brightBlackColorConstant             = "8"
)

// Tone selects the color a console message is rendered with.
type Tone int

// Supported tones.
const (
	TonePlain Tone = iota
	ToneSuccess
	ToneFailure
	ToneHighlight
	ToneMuted
	ToneNotice
	ToneInformation
	ToneWarning
)

// ColorMode controls whether console output carries ANSI colors.
type ColorMode string

// Supported color modes.
const (
	ColorModeAuto   ColorMode = ColorMode(colorModeAutoStringConstant)
	ColorModeAlways ColorMode = ColorMode(colorModeAlwaysStringConstant)
	ColorModeNever  ColorMode = ColorMode(colorModeNeverStringConstant)
)

// ParseColorMode validates a user supplied color mode. An empty value means auto.
func ParseColorMode(rawValue string) (ColorMode, error) {
	switch normalizedValue := ColorMode(strings.ToLower(strings.TrimSpace(rawValue))); normalizedValue {
	case "", ColorModeAuto:
		return ColorModeAuto, nil
	case ColorModeAlways, ColorModeNever:
		return normalizedValue, nil
	default:
		return "", fmt.Errorf(unsupportedColorModeTemplateConstant, rawValue)
	}
}

// ResolveColorProfile maps a color mode to a termenv profile. Auto inspects the
// terminal and honors NO_COLOR and CLICOLOR_FORCE.
func ResolveColorProfile(mode ColorMode, terminal io.Writer) termenv.Profile {
	switch mode {
	case ColorModeAlways:
		return termenv.ANSI
	case ColorModeNever:
		return termenv.Ascii
	}
	if terminal == nil {
		terminal = os.Stdout
	}
	return termenv.NewOutput(terminal).EnvColorProfile()
}

// ConsoleReporter prints one colored line per message.
type ConsoleReporter struct {
	writer io.Writer
	styles map[Tone]lipgloss.Style
	mutex  sync.Mutex
}

// NewConsoleReporter binds a lipgloss renderer with the given profile to the writer.
func NewConsoleReporter(writer io.Writer, profile termenv.Profile) *ConsoleReporter {
	if writer == nil {
		writer = io.Discard
	}

	renderer := lipgloss.NewRenderer(writer)
	renderer.SetColorProfile(profile)

	return &ConsoleReporter{
		writer: writer,
		styles: map[Tone]lipgloss.Style{
			TonePlain:       renderer.NewStyle(),
			ToneSuccess:     renderer.NewStyle().Foreground(lipgloss.Color(brightGreenColorConstant)),
			ToneFailure:     renderer.NewStyle().Foreground(lipgloss.Color(brightRedColorConstant)),
			ToneHighlight:   renderer.NewStyle().Foreground(lipgloss.Color(brightMagentaColorConstant)),
			ToneMuted:       renderer.NewStyle().Foreground(lipgloss.Color(brightBlackColorConstant)),
			ToneNotice:      renderer.NewStyle().Foreground(lipgloss.Color(brightCyanColorConstant)),
			ToneInformation: renderer.NewStyle().Foreground(lipgloss.Color(brightBlueColorConstant)),
			ToneWarning:     renderer.NewStyle().Foreground(lipgloss.Color(brightYellowColorConstant)),
		},
	}
}

// Report writes the message followed by a newline.
func (reporter *ConsoleReporter) Report(tone Tone, message string) {
	if reporter == nil {
		return
	}

	style, styleExists := reporter.styles[tone]
	if !styleExists {
		style = reporter.styles[TonePlain]
	}

	reporter.mutex.Lock()
	defer reporter.mutex.Unlock()
	_, _ = io.WriteString(reporter.writer, style.Render(message)+lineTerminatorConstant)
}
