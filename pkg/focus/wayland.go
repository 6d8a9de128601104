package focus

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

var waylandLockers = []string{"swaylock", "waylock", "gtklock", "hyprlock", "gnome-screensaver-dialog"}

// WaylandDetector asks the compositor for the focused toplevel. Only
// compositors with an IPC that exposes focus are supported.
type WaylandDetector struct {
	compositor string
}

func NewWaylandDetector() *WaylandDetector {
	return &WaylandDetector{compositor: detectCompositor()}
}

func detectCompositor() string {
	compositors := []struct{ process, name, ipc string }{
		{"sway", "sway", "swaymsg"},
		{"Hyprland", "hyprland", "hyprctl"},
		{"gnome-shell", "gnome", "gdbus"},
	}

	for _, c := range compositors {
		if exec.Command("pgrep", "-x", c.process).Run() == nil && commandExists(c.ipc) {
			return c.name
		}
	}
	return "unknown"
}

func (d *WaylandDetector) IsAvailable() bool {
	switch d.compositor {
	case "sway", "hyprland", "gnome":
		return true
	}
	return false
}

func (d *WaylandDetector) GetDisplayServer() string {
	return "wayland"
}

func (d *WaylandDetector) GetFocusedWindow() (*WindowInfo, error) {
	var (
		info *WindowInfo
		err  error
	)

	switch d.compositor {
	case "sway":
		var out []byte
		out, err = exec.Command("swaymsg", "-t", "get_tree").Output()
		if err != nil {
			return nil, fmt.Errorf("failed to execute swaymsg: %w", err)
		}
		info, err = parseSwayTree(out)
	case "hyprland":
		var out []byte
		out, err = exec.Command("hyprctl", "activewindow", "-j").Output()
		if err != nil {
			return nil, fmt.Errorf("failed to execute hyprctl: %w", err)
		}
		info, err = parseHyprlandWindow(out)
	case "gnome":
		var out []byte
		out, err = exec.Command("gdbus", "call", "--session",
			"--dest", "org.gnome.Shell",
			"--object-path", "/org/gnome/Shell",
			"--method", "org.gnome.Shell.Eval",
			gnomeFocusScript).Output()
		if err != nil {
			return nil, fmt.Errorf("failed to execute gdbus: %w", err)
		}
		info, err = parseGnomeEval(out)
	default:
		return nil, fmt.Errorf("unsupported wayland compositor: %s", d.compositor)
	}
	if err != nil {
		return nil, err
	}

	info.DisplayServer = "wayland"
	if info.PID != 0 {
		info.ProcessName = processName(info.PID)
	}
	return info, nil
}

// GetIdleInfo reports lock state only; Wayland has no portable idle query.
func (d *WaylandDetector) GetIdleInfo() (*IdleInfo, error) {
	return &IdleInfo{IsLocked: screenLocked(waylandLockers)}, nil
}

func (d *WaylandDetector) Close() error {
	return nil
}

type swayNode struct {
	Focused       bool       `json:"focused"`
	Name          string     `json:"name"`
	AppID         string     `json:"app_id"`
	PID           uint32     `json:"pid"`
	Nodes         []swayNode `json:"nodes"`
	FloatingNodes []swayNode `json:"floating_nodes"`
	WindowProps   struct {
		Class string `json:"class"`
	} `json:"window_properties"`
}

func parseSwayTree(data []byte) (*WindowInfo, error) {
	var root swayNode
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to decode sway tree: %w", err)
	}

	node := findFocused(&root)
	if node == nil {
		return nil, ErrNoWindow
	}

	appID := node.AppID
	if appID == "" {
		appID = node.WindowProps.Class
	}
	if appID == "" {
		return nil, ErrNoWindow
	}

	return &WindowInfo{AppID: appID, WindowTitle: node.Name, PID: node.PID}, nil
}

func findFocused(n *swayNode) *swayNode {
	if n.Focused {
		return n
	}
	for _, children := range [][]swayNode{n.Nodes, n.FloatingNodes} {
		for i := range children {
			if found := findFocused(&children[i]); found != nil {
				return found
			}
		}
	}
	return nil
}

func parseHyprlandWindow(data []byte) (*WindowInfo, error) {
	var win struct {
		Class string `json:"class"`
		Title string `json:"title"`
		PID   int64  `json:"pid"`
	}
	if err := json.Unmarshal(data, &win); err != nil {
		return nil, fmt.Errorf("failed to decode hyprctl output: %w", err)
	}
	if win.Class == "" {
		return nil, ErrNoWindow
	}

	info := &WindowInfo{AppID: win.Class, WindowTitle: win.Title}
	if win.PID > 0 {
		info.PID = uint32(win.PID)
	}
	return info, nil
}

// Shell.Eval is disabled unless GNOME runs in unsafe mode.
const gnomeFocusScript = `(() => {
	const win = global.display.focus_window;
	if (!win) return '';
	return [win.get_wm_class() || '', win.get_pid(), win.get_title() || ''].join('|||');
})()`

var errGnomeEvalDenied = errors.New("org.gnome.Shell.Eval is not permitted in this session")

// parseGnomeEval decodes gdbus output of the form (true, 'class|||pid|||title').
func parseGnomeEval(data []byte) (*WindowInfo, error) {
	result := strings.TrimSpace(string(data))
	if !strings.HasPrefix(result, "(true,") {
		return nil, errGnomeEvalDenied
	}

	result = strings.TrimPrefix(result, "(true,")
	result = strings.TrimSuffix(result, ")")
	result = strings.Trim(strings.TrimSpace(result), `'"`)

	parts := strings.SplitN(result, "|||", 3)
	if len(parts) < 3 || parts[0] == "" {
		return nil, ErrNoWindow
	}

	info := &WindowInfo{AppID: parts[0], WindowTitle: parts[2]}
	if pid, err := strconv.ParseUint(parts[1], 10, 32); err == nil {
		info.PID = uint32(pid)
	}
	return info, nil
}

func commandExists(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}

func processName(pid uint32) string {
	out, err := exec.Command("ps", "-p", strconv.FormatUint(uint64(pid), 10), "-o", "comm=").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

var x11Lockers = []string{"gnome-screensaver-dialog", "kscreenlocker", "i3lock", "slock", "xscreensaver", "xsecurelock"}

func screenLocked(lockers []string) bool {
	for _, locker := range lockers {
		if exec.Command("pgrep", "-x", locker).Run() == nil {
			return true
		}
	}

	out, err := exec.Command("loginctl", "show-session", "-p", "LockedHint").Output()
	return err == nil && strings.Contains(string(out), "LockedHint=yes")
}
