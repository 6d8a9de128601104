package focus

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// DefaultIdleThreshold is how long without input before the user is idle.
const DefaultIdleThreshold = 5 * time.Minute

// New returns a detector for the current graphical session.
func New(idleThreshold time.Duration) (Detector, error) {
	if idleThreshold <= 0 {
		idleThreshold = DefaultIdleThreshold
	}

	switch DetectDisplayServer() {
	case "wayland":
		det := NewWaylandDetector()
		if det.IsAvailable() && !det.evalDenied() {
			return det, nil
		}
		// XWayland sessions still expose the X11 focus properties.
		if os.Getenv("DISPLAY") != "" {
			return newX11(idleThreshold)
		}
		return nil, fmt.Errorf("unsupported wayland compositor: %s", det.compositor)
	case "x11":
		return newX11(idleThreshold)
	default:
		return nil, fmt.Errorf("no display server detected (XDG_SESSION_TYPE, WAYLAND_DISPLAY and DISPLAY are unset)")
	}
}

// evalDenied reports a GNOME session that refuses Shell.Eval, where the
// XWayland fallback is the only way to observe focus.
func (d *WaylandDetector) evalDenied() bool {
	if d.compositor != "gnome" || os.Getenv("DISPLAY") == "" {
		return false
	}
	_, err := d.GetFocusedWindow()
	return errors.Is(err, errGnomeEvalDenied)
}

// newX11 keeps a failed connection from surfacing as a non-nil Detector.
func newX11(idleThreshold time.Duration) (Detector, error) {
	det, err := NewX11Detector(idleThreshold)
	if err != nil {
		return nil, err
	}
	return det, nil
}

func DetectDisplayServer() string {
	sessionType := os.Getenv("XDG_SESSION_TYPE")
	waylandDisplay := os.Getenv("WAYLAND_DISPLAY")
	x11Display := os.Getenv("DISPLAY")

	if sessionType == "wayland" || waylandDisplay != "" {
		return "wayland"
	}

	if sessionType == "x11" || x11Display != "" {
		return "x11"
	}

	return "unknown"
}
