package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aliceout/nodea/internal/client/modules"
	"github.com/aliceout/nodea/internal/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func (a *App) ShowPrefs(ctx context.Context) error {
	sess, err := a.ensureSession(ctx)
	if err != nil {
		return err
	}
	prefs, state, err := a.prefs.Load(ctx, sess.Key)
	if err != nil {
		return err
	}
	if state == modules.StateUnparsable {
		a.printf("%s stored preferences are unreadable\n", color.YellowString("!"))
	}

	keys := make([]string, 0, len(prefs))
	for k := range prefs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, _ := json.Marshal(prefs[k])
		a.printf("%s = %s\n", k, v)
	}
	return nil
}

// SetPref stores value under name. value is taken as JSON when it parses,
// as a plain string otherwise.
func (a *App) SetPref(ctx context.Context, name, value string) error {
	sess, err := a.ensureSession(ctx)
	if err != nil {
		return err
	}
	prefs, state, err := a.prefs.Load(ctx, sess.Key)
	if err != nil {
		return err
	}
	if state == modules.StateUnparsable {
		return fmt.Errorf("%w: stored preferences are unreadable; refusing to overwrite them", common.ErrorValidation)
	}

	var v any
	if err := json.Unmarshal([]byte(value), &v); err != nil {
		v = value
	}
	prefs[name] = v
	if err := a.prefs.Save(ctx, sess.Key, prefs); err != nil {
		return err
	}
	a.printf("%s %s saved\n", color.GreenString("✓"), name)
	return nil
}

func (r *runner) prefsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change encrypted preferences",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print every preference",
		Args:  cobra.NoArgs,
		RunE: r.withApp(func(ctx context.Context, a *App, _ []string) error {
			return a.ShowPrefs(ctx)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <name> <value>",
		Short: "Set one preference",
		Args:  cobra.ExactArgs(2),
		RunE: r.withApp(func(ctx context.Context, a *App, args []string) error {
			return a.SetPref(ctx, args[0], args[1])
		}),
	})
	return cmd
}
