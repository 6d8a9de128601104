package focus

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/screensaver"
	"github.com/jezek/xgb/xproto"
)

var x11Atoms = []string{
	"_NET_ACTIVE_WINDOW",
	"_NET_WM_NAME",
	"_NET_WM_PID",
	"WM_NAME",
	"WM_CLASS",
	"UTF8_STRING",
}

// X11Detector reads EWMH properties over a single X connection.
type X11Detector struct {
	mu             sync.Mutex
	conn           *xgb.Conn
	root           xproto.Window
	atoms          map[string]xproto.Atom
	hasScreensaver bool
	idleThreshold  time.Duration
}

// NewX11Detector connects to $DISPLAY and interns the atoms it needs.
func NewX11Detector(idleThreshold time.Duration) (*X11Detector, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	d := &X11Detector{
		conn:          conn,
		root:          xproto.Setup(conn).DefaultScreen(conn).Root,
		atoms:         make(map[string]xproto.Atom, len(x11Atoms)),
		idleThreshold: idleThreshold,
	}

	for _, name := range x11Atoms {
		reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to intern atom %s: %w", name, err)
		}
		d.atoms[name] = reply.Atom
	}

	d.hasScreensaver = screensaver.Init(conn) == nil

	return d, nil
}

func (d *X11Detector) IsAvailable() bool {
	return d.conn != nil
}

func (d *X11Detector) GetDisplayServer() string {
	return "x11"
}

func (d *X11Detector) GetFocusedWindow() (*WindowInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	win, err := d.activeWindow()
	if err != nil {
		return nil, err
	}

	_, class := parseWMClass(d.property(win, d.atoms["WM_CLASS"], xproto.AtomString, 256))
	pid := d.windowPID(win)

	info := &WindowInfo{
		AppID:         class,
		WindowTitle:   d.windowName(win),
		PID:           pid,
		DisplayServer: "x11",
	}
	if pid != 0 {
		info.ProcessName = processName(pid)
	}
	if info.AppID == "" {
		info.AppID = info.ProcessName
	}
	if info.AppID == "" {
		return nil, ErrNoWindow
	}
	return info, nil
}

func (d *X11Detector) GetIdleInfo() (*IdleInfo, error) {
	info := &IdleInfo{IsLocked: screenLocked(x11Lockers)}

	if d.hasScreensaver {
		d.mu.Lock()
		reply, err := screensaver.QueryInfo(d.conn, xproto.Drawable(d.root)).Reply()
		d.mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("failed to query screensaver info: %w", err)
		}
		info.IdleTime = time.Duration(reply.MsSinceUserInput) * time.Millisecond
	}

	info.IsIdle = info.IdleTime > d.idleThreshold
	return info, nil
}

func (d *X11Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
	return nil
}

func (d *X11Detector) property(win xproto.Window, atom, atomType xproto.Atom, length uint32) []byte {
	reply, err := xproto.GetProperty(d.conn, false, win, atom, atomType, 0, length).Reply()
	if err != nil || reply == nil {
		return nil
	}
	return reply.Value
}

func (d *X11Detector) activeWindow() (xproto.Window, error) {
	data := d.property(d.root, d.atoms["_NET_ACTIVE_WINDOW"], xproto.AtomWindow, 1)
	if len(data) >= 4 {
		if win := xproto.Window(binary.LittleEndian.Uint32(data)); win != 0 {
			return win, nil
		}
	}

	// Window managers without EWMH: walk up from the input focus.
	focus, err := xproto.GetInputFocus(d.conn).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to get input focus: %w", err)
	}
	win := focus.Focus
	if win == 0 || win == d.root {
		return 0, ErrNoWindow
	}
	for {
		tree, err := xproto.QueryTree(d.conn, win).Reply()
		if err != nil || tree.Parent == d.root || tree.Parent == 0 {
			return win, nil
		}
		win = tree.Parent
	}
}

func (d *X11Detector) windowName(win xproto.Window) string {
	if data := d.property(win, d.atoms["_NET_WM_NAME"], d.atoms["UTF8_STRING"], 256); len(data) > 0 {
		return strings.TrimRight(string(data), "\x00")
	}
	return strings.TrimRight(string(d.property(win, d.atoms["WM_NAME"], xproto.AtomString, 256)), "\x00")
}

func (d *X11Detector) windowPID(win xproto.Window) uint32 {
	data := d.property(win, d.atoms["_NET_WM_PID"], xproto.AtomCardinal, 1)
	if len(data) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(data)
}

// parseWMClass splits the raw WM_CLASS value ("instance\x00class\x00").
func parseWMClass(data []byte) (instance, class string) {
	parts := strings.Split(strings.TrimRight(string(data), "\x00"), "\x00")
	if len(parts) >= 1 {
		instance = parts[0]
	}
	if len(parts) >= 2 {
		class = parts[1]
	}
	if class == "" {
		class = instance
	}
	return instance, class
}
