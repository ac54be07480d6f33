package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExec struct {
	loggedIn bool
	calls    []string
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }
func (f *fakeExec) Login(ctx context.Context) error {
	f.calls = append(f.calls, "login")
	f.loggedIn = true
	return nil
}
func (f *fakeExec) Logout(ctx context.Context) error {
	f.calls = append(f.calls, "logout")
	f.loggedIn = false
	return nil
}

func TestRunREPL_DispatchesAndStops(t *testing.T) {
	input := strings.Join([]string{
		"help",
		"login",
		"",
		`records add mood --data '{"date": "2024-05-01", "mood_score": 3}'`,
		"modules list",
		"boom",
		"logout",
		"exit",
		"modules list",
	}, "\n")

	exec := &fakeExec{}
	var dispatched [][]string
	dispatch := func(_ context.Context, args []string) error {
		dispatched = append(dispatched, args)
		if args[0] == "boom" {
			return errors.New("kaput")
		}
		return nil
	}

	var out bytes.Buffer
	runREPL(context.Background(), exec, dispatch, func() string { return " (s)" }, bufio.NewReader(strings.NewReader(input)), &out)

	assert.Equal(t, []string{"login", "logout"}, exec.calls)
	require.Len(t, dispatched, 3)
	assert.Equal(t, []string{"records", "add", "mood", "--data", `{"date": "2024-05-01", "mood_score": 3}`}, dispatched[0])
	assert.Equal(t, []string{"modules", "list"}, dispatched[1])

	s := out.String()
	assert.Contains(t, s, "nodea (s)> ")
	assert.Contains(t, s, "Available commands: register, login")
	assert.Contains(t, s, "kaput")
	assert.Contains(t, s, "Bye!")
}

func TestRunREPL_EOF(t *testing.T) {
	exec := &fakeExec{loggedIn: true}
	var out bytes.Buffer
	runREPL(context.Background(), exec, func(context.Context, []string) error {
		t.Fatal("unexpected dispatch")
		return nil
	}, func() string { return "" }, bufio.NewReader(strings.NewReader("")), &out)
	assert.Empty(t, exec.calls)
}

func TestRunREPL_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	runREPL(ctx, &fakeExec{}, nil, func() string { return "" }, bufio.NewReader(strings.NewReader("help\n")), &out)
	assert.Empty(t, out.String())
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		line    string
		want    []string
		wantErr bool
	}{
		{"records list mood\n", []string{"records", "list", "mood"}, false},
		{"  a\t b  ", []string{"a", "b"}, false},
		{`x "two words" 'it"s'`, []string{"x", "two words", `it"s`}, false},
		{`x ""`, []string{"x", ""}, false},
		{`pre"fix"ed`, []string{"prefixed"}, false},
		{"", nil, false},
		{`x 'open`, nil, true},
	}
	for _, tt := range tests {
		got, err := splitArgs(tt.line)
		if tt.wantErr {
			assert.Error(t, err, tt.line)
			continue
		}
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}
}
