// Package styles provides the shared lipgloss styles for CLI output.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/suevga/suvega-darkstore-sub001/internal/core/notify"
	"github.com/suevga/suvega-darkstore-sub001/internal/core/order"
)

// Palette is the tokyo-night palette.
var (
	ColorPrimary = lipgloss.Color("#7aa2f7")
	ColorMuted   = lipgloss.Color("#565f89")
	ColorSuccess = lipgloss.Color("#9ece6a")
	ColorWarning = lipgloss.Color("#e0af68")
	ColorError   = lipgloss.Color("#f7768e")
	ColorInfo    = lipgloss.Color("#7dcfff")
)

var (
	Bold    = lipgloss.NewStyle().Bold(true)
	Muted   = lipgloss.NewStyle().Foreground(ColorMuted)
	Primary = lipgloss.NewStyle().Foreground(ColorPrimary)
	Success = lipgloss.NewStyle().Foreground(ColorSuccess)
	Warning = lipgloss.NewStyle().Foreground(ColorWarning)
	Error   = lipgloss.NewStyle().Foreground(ColorError)
	Info    = lipgloss.NewStyle().Foreground(ColorInfo)
)

// Icons used in CLI output.
const (
	IconSuccess = "✔"
	IconInfo    = "•"
	IconWarning = "!"
	IconError   = "✘"
)

// Status returns the style for an order status.
func Status(s order.Status) lipgloss.Style {
	switch s {
	case order.StatusDelivered:
		return Success
	case order.StatusRejected, order.StatusCancelled:
		return Error
	case order.StatusOutForDelivery:
		return Primary
	case order.StatusPending:
		return Warning
	default:
		return Info
	}
}

// RenderStatus renders a status label in its color.
func RenderStatus(s order.Status) string {
	return Status(s).Render(s.Label())
}

// Notification returns the style and icon for a notification type.
func Notification(t notify.Type) (lipgloss.Style, string) {
	switch t {
	case notify.TypeSuccess:
		return Success, IconSuccess
	case notify.TypeWarning:
		return Warning, IconWarning
	case notify.TypeError:
		return Error, IconError
	default:
		return Info, IconInfo
	}
}
