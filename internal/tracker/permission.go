package tracker

import (
	"fmt"

	"github.com/screentime/screentime/pkg/focus"
)

// Permission reports whether the desktop lets us observe the focused window.
type Permission struct {
	detector focus.Detector
}

func NewPermission(detector focus.Detector) *Permission {
	return &Permission{detector: detector}
}

// HasPermission is true when a detector exists and can reach the display.
func (p *Permission) HasPermission() bool {
	return p.detector != nil && p.detector.IsAvailable()
}

// RequestPermission returns what the user has to do to grant access.
func (p *Permission) RequestPermission() string {
	server := focus.DetectDisplayServer()
	if p.detector != nil {
		server = p.detector.GetDisplayServer()
	}

	switch server {
	case "x11":
		return "Make sure DISPLAY points at a running X server and that this user may connect to it (see xhost)."
	case "wayland":
		return "Run under sway, Hyprland or GNOME with swaymsg, hyprctl or gdbus on PATH. GNOME also needs Shell.Eval enabled or an XWayland DISPLAY."
	default:
		return fmt.Sprintf("No supported display server found (detected %q). Run from a graphical session.", server)
	}
}
