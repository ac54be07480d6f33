package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aliceout/nodea/internal/client/config"
	"github.com/aliceout/nodea/internal/client/plugins"
	"github.com/aliceout/nodea/internal/common"
	"github.com/aliceout/nodea/internal/logging"
	"github.com/aliceout/nodea/internal/server/servertest"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const password = "correct horse"

type harness struct {
	t   *testing.T
	srv *servertest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	color.NoColor = true
	stubTerminal(t, false, nil)
	return &harness{t: t, srv: servertest.New(t)}
}

// run executes one nodea invocation. stdin holds the typed lines.
func (h *harness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	base := []string{"--server", h.srv.URL, "--cache", ":memory:", "-u", "alice"}
	err := Run(context.Background(), append(base, args...), Options{
		In:  strings.NewReader(stdin),
		Out: &out,
		Err: io.Discard,
	})
	return out.String(), err
}

func (h *harness) mustRun(stdin string, args ...string) string {
	h.t.Helper()
	out, err := h.run(stdin, args...)
	require.NoError(h.t, err, out)
	return out
}

func pw(n int) string {
	return strings.Repeat(password+"\n", n)
}

func TestCLI_RegisterEnableAddList(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun(pw(2), "register")
	assert.Contains(t, out, "account alice created")

	out = h.mustRun(pw(1), "modules", "enable", "mood")
	assert.Contains(t, out, "module mood enabled")

	out = h.mustRun(pw(1), "modules", "list")
	assert.Regexp(t, `mood\s+on\s+mood_entries`, out)
	assert.Regexp(t, `goals\s+off`, out)

	out = h.mustRun(pw(1), "records", "add", "mood", "--data", `{"date":"2024-05-01","mood_score":3,"comment":"sunny walk"}`)
	assert.Contains(t, out, "added")

	out = h.mustRun(pw(1), "records", "list", "mood")
	assert.Contains(t, out, "sunny walk")
	assert.Contains(t, out, "page 1/1, 1 entries")
}

func TestCLI_RegisterPasswordMismatch(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(password+"\nother\n", "register")
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestCLI_WrongPassword(t *testing.T) {
	h := newHarness(t)
	h.mustRun(pw(2), "register")

	_, err := h.run("nope\n", "modules", "list")
	require.Error(t, err)
}

func TestCLI_DisabledModuleIsRefused(t *testing.T) {
	h := newHarness(t)
	h.mustRun(pw(2), "register")

	_, err := h.run(pw(1), "records", "list", "goals")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	h.mustRun(pw(1), "modules", "enable", "goals")
	h.mustRun(pw(1), "modules", "disable", "goals")
	_, err = h.run(pw(1), "records", "list", "goals")
	assert.ErrorIs(t, err, common.ErrorForbidden)

	_, err = h.run(pw(1), "modules", "enable", "weather")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestCLI_ExportImportIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.mustRun(pw(2), "register")
	h.mustRun(pw(1), "modules", "enable", "mood")
	h.mustRun(pw(1), "records", "add", "mood", "-d", `{"date":"2024-05-01","mood_score":3}`)
	h.mustRun(pw(1), "records", "add", "mood", "-d", `{"date":"2024-05-02","mood_score":4}`)

	out := h.mustRun(pw(1), "export")
	var bundle plugins.Bundle
	require.NoError(t, json.Unmarshal([]byte(out), &bundle))
	assert.Equal(t, plugins.BundleApp, bundle.App)
	assert.Len(t, bundle.Items, 2)

	path := filepath.Join(t.TempDir(), "bundle.json")
	out = h.mustRun(pw(1), "export", "--out", path)
	assert.Contains(t, out, "exported to")
	_, err := os.Stat(path)
	require.NoError(t, err)

	out = h.mustRun(pw(1), "import", path)
	assert.Contains(t, out, "0 created, 2 already present, 0 failed")

	// a new entry in the bundle is the only one created
	bundle.Items = append(bundle.Items, plugins.Item{Module: "mood", Version: 1, Payload: plugins.Plain{"date": "2024-05-03", "mood_score": float64(5)}})
	data, err := json.Marshal(bundle)
	require.NoError(t, err)
	out = h.mustRun(pw(1)+string(data), "import", "-")
	assert.Contains(t, out, "1 created, 2 already present, 0 failed")

	out = h.mustRun(pw(1), "records", "list", "mood")
	assert.Contains(t, out, "3 entries")
}

func TestCLI_UpdateShowDelete(t *testing.T) {
	h := newHarness(t)
	h.mustRun(pw(2), "register")
	h.mustRun(pw(1), "modules", "enable", "goals")
	h.mustRun(pw(1), "records", "add", "goals", "-d", `{"title":"Learn Go"}`)

	out := h.mustRun(pw(1), "export", "-m", "goals")
	require.Contains(t, out, "Learn Go")

	id := firstRecordID(t, h)

	h.mustRun(pw(1), "records", "update", "goals", id, "-d", `{"title":"Learn Go well"}`)
	out = h.mustRun(pw(1), "records", "show", "goals", id)
	assert.Contains(t, out, `"title": "Learn Go well"`)

	h.mustRun(pw(1), "records", "delete", "goals", id)
	_, err := h.run(pw(1), "records", "show", "goals", id)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

// firstRecordID reads the id column of the first goals row.
func firstRecordID(t *testing.T, h *harness) string {
	t.Helper()
	out := h.mustRun(pw(1), "records", "list", "goals")
	lines := strings.Split(out, "\n")
	for _, l := range lines[1:] {
		if f := strings.Fields(l); len(f) > 0 && f[0] != "page" {
			return f[0]
		}
	}
	t.Fatalf("no record in %q", out)
	return ""
}

func TestCLI_BackupPushPullRestore(t *testing.T) {
	h := newHarness(t)
	h.mustRun(pw(2), "register")
	h.mustRun(pw(1), "modules", "enable", "passage")
	h.mustRun(pw(1), "records", "add", "passage", "-d", `{"date":"2024-05-01","thread":"spring","content":"first light"}`)

	// one shell session, so the cache remembers the last backup key
	script := pw(1) + strings.Join([]string{
		"backup push",
		"records add passage -d '{\"date\":\"2024-05-02\",\"content\":\"second\"}'",
		"backup pull",
		"backup pull --restore",
		"records list passage",
		"exit",
	}, "\n") + "\n"

	out := h.mustRun(script, "shell")
	assert.Contains(t, out, "backup stored as users/")
	assert.Contains(t, out, `"content": "first light"`)
	assert.Contains(t, out, "0 created, 1 already present, 0 failed")
	assert.Contains(t, out, "2 entries")
	assert.NotContains(t, out, "error:")
}

func TestCLI_ShellLoginLogout(t *testing.T) {
	h := newHarness(t)
	h.mustRun(pw(2), "register")

	script := pw(1) + "help\nlogout\nhelp\nmodules list\n" + password + "\nexit\n"
	out := h.mustRun(script, "shell")

	assert.Contains(t, out, "logged in as alice")
	assert.Contains(t, out, "nodea (alice)> ")
	assert.Contains(t, out, "logged out")
	assert.Contains(t, out, "Available commands: register, login")
	assert.Regexp(t, `mood\s+off`, out)
	assert.Contains(t, out, "Bye!")
}

func TestCLI_HelpDoesNotOpenCache(t *testing.T) {
	called := false
	var out bytes.Buffer
	err := Run(context.Background(), []string{"--help"}, Options{
		In:  strings.NewReader(""),
		Out: &out,
		Err: io.Discard,
		NewApp: func(context.Context, *config.Config, logging.Logger, io.Reader, io.Writer, io.Writer) (*App, error) {
			called = true
			return nil, nil
		},
	})
	require.NoError(t, err)
	assert.False(t, called)
	assert.Contains(t, out.String(), "records")
	assert.Contains(t, out.String(), "--server")
}

func TestCLI_Prefs(t *testing.T) {
	h := newHarness(t)
	h.mustRun(pw(2), "register")

	h.mustRun(pw(1), "prefs", "set", "theme", "dark")
	h.mustRun(pw(1), "prefs", "set", "week_start", "1")

	out := h.mustRun(pw(1), "prefs", "show")
	assert.Equal(t, "theme = \"dark\"\nweek_start = 1\n", out)
}
