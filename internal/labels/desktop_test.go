package labels

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/screentime/screentime/pkg/usage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEntry(t *testing.T, dir, file, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(body), 0644))
}

func newTestResolver(t *testing.T, dirs ...string) *DesktopResolver {
	t.Helper()
	r, err := NewDesktopResolver(dirs, 16, zerolog.Nop())
	require.NoError(t, err)
	return r
}

func TestResolveLabel(t *testing.T) {
	user := filepath.Join(t.TempDir(), "user")
	system := filepath.Join(t.TempDir(), "system")

	writeEntry(t, system, "org.mozilla.firefox.desktop", `[Desktop Entry]
Type=Application
Name=Firefox
Name[de]=Firefox Webbrowser
Exec=firefox %u
StartupWMClass=firefox
`)
	writeEntry(t, system, "code.desktop", `[Desktop Entry]
Name=Visual Studio Code
Exec=/usr/share/code/code --unity-launch %F # not a comment
`)
	writeEntry(t, system, "org.gnome.Nautilus.desktop", `[Desktop Entry]
Name=Files
`)
	writeEntry(t, user, "code.desktop", `[Desktop Entry]
Name=Code (user)
`)
	writeEntry(t, system, "hidden.desktop", `[Desktop Entry]
Name=Hidden App
Hidden=true
`)
	writeEntry(t, system, "README.txt", "not an entry")

	r := newTestResolver(t, user, system)

	tests := []struct {
		appID string
		want  string
	}{
		{appID: "firefox", want: "Firefox"},
		{appID: "Firefox", want: "Firefox"},
		{appID: "code", want: "Code (user)"},
		{appID: "nautilus", want: "Files"},
		{appID: "org.gnome.nautilus", want: "Files"},
	}

	for _, tt := range tests {
		t.Run(tt.appID, func(t *testing.T) {
			got, err := r.ResolveLabel(tt.appID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveLabelMiss(t *testing.T) {
	dir := t.TempDir()
	writeEntry(t, dir, "hidden.desktop", "[Desktop Entry]\nName=Hidden App\nHidden=true\n")
	writeEntry(t, dir, "broken.desktop", "[Other]\nName=Nope\n")

	r := newTestResolver(t, dir, filepath.Join(dir, "missing"))

	for _, appID := range []string{"hidden", "broken", "unknown", ""} {
		_, err := r.ResolveLabel(appID)
		assert.ErrorIs(t, err, usage.ErrLabelNotFound, appID)
	}
}

func TestResolveLabelCachesResults(t *testing.T) {
	dir := t.TempDir()
	writeEntry(t, dir, "slack.desktop", "[Desktop Entry]\nName=Slack\n")

	r := newTestResolver(t, dir)

	got, err := r.ResolveLabel("slack")
	require.NoError(t, err)
	assert.Equal(t, "Slack", got)

	_, err = r.ResolveLabel("zoom")
	assert.ErrorIs(t, err, usage.ErrLabelNotFound)

	// Changes on disk are invisible until the cache is purged.
	require.NoError(t, os.Remove(filepath.Join(dir, "slack.desktop")))
	writeEntry(t, dir, "zoom.desktop", "[Desktop Entry]\nName=Zoom\n")

	got, err = r.ResolveLabel("slack")
	require.NoError(t, err)
	assert.Equal(t, "Slack", got)
	_, err = r.ResolveLabel("zoom")
	assert.ErrorIs(t, err, usage.ErrLabelNotFound)

	r.Purge()

	_, err = r.ResolveLabel("slack")
	assert.ErrorIs(t, err, usage.ErrLabelNotFound)
	got, err = r.ResolveLabel("zoom")
	require.NoError(t, err)
	assert.Equal(t, "Zoom", got)
}

func TestResolverFeedsAggregate(t *testing.T) {
	dir := t.TempDir()
	writeEntry(t, dir, "slack.desktop", "[Desktop Entry]\nName=Slack\n")
	r := newTestResolver(t, dir)

	rows := usage.Aggregate([]usage.Event{
		{AppID: "slack", Timestamp: 0, Kind: usage.ForegroundEnter},
		{AppID: "slack", Timestamp: 100, Kind: usage.ForegroundExit},
		{AppID: "term", Timestamp: 100, Kind: usage.ForegroundEnter},
		{AppID: "term", Timestamp: 150, Kind: usage.ForegroundExit},
	}, usage.Window{Start: 0, End: 200}, r)

	assert.Equal(t, []usage.Row{
		{AppID: "slack", Label: "Slack", TotalForegroundMs: 100},
		{AppID: "term", Label: "term", TotalForegroundMs: 50},
	}, rows)
}

func TestDefaultDirs(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/home/u/.local/share")
	t.Setenv("XDG_DATA_DIRS", "/opt/share:/usr/share")

	assert.Equal(t, []string{
		"/home/u/.local/share/applications",
		"/opt/share/applications",
		"/usr/share/applications",
		"/var/lib/flatpak/exports/share/applications",
	}, DefaultDirs())
}
