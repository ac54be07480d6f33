package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// ListModules prints every known module with its state for the user.
func (a *App) ListModules(ctx context.Context) error {
	sess, err := a.ensureSession(ctx)
	if err != nil {
		return err
	}
	cfg, _ := a.modules.Cached(sess.UserID)

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODULE\tSTATE\tCOLLECTION")
	for _, id := range a.registry.IDs() {
		p, _ := a.registry.Get(id)
		state := color.YellowString("off")
		if cfg[id].Enabled {
			state = color.GreenString("on")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", id, state, p.Meta().CollectionName)
	}
	return tw.Flush()
}

func (a *App) EnableModule(ctx context.Context, moduleID string) error {
	if _, err := a.registry.Get(moduleID); err != nil {
		return err
	}
	sess, err := a.ensureSession(ctx)
	if err != nil {
		return err
	}
	if _, err := a.modules.Enable(ctx, sess.UserID, sess.Key, moduleID); err != nil {
		return err
	}
	a.printf("%s module %s enabled\n", color.GreenString("✓"), color.CyanString(moduleID))
	return nil
}

// DisableModule hides a module. Its records stay on the server and come
// back when it is enabled again.
func (a *App) DisableModule(ctx context.Context, moduleID string) error {
	if _, err := a.registry.Get(moduleID); err != nil {
		return err
	}
	sess, err := a.ensureSession(ctx)
	if err != nil {
		return err
	}
	if err := a.modules.Disable(ctx, sess.UserID, sess.Key, moduleID); err != nil {
		return err
	}
	a.printf("module %s disabled\n", color.CyanString(moduleID))
	return nil
}

func (r *runner) modulesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modules",
		Short: "List, enable and disable modules",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show every module and whether it is enabled",
		Args:  cobra.NoArgs,
		RunE: r.withApp(func(ctx context.Context, a *App, _ []string) error {
			return a.ListModules(ctx)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "enable <module>",
		Short: "Enable a module",
		Args:  cobra.ExactArgs(1),
		RunE: r.withApp(func(ctx context.Context, a *App, args []string) error {
			return a.EnableModule(ctx, args[0])
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "disable <module>",
		Short: "Disable a module; its records are kept",
		Args:  cobra.ExactArgs(1),
		RunE: r.withApp(func(ctx context.Context, a *App, args []string) error {
			return a.DisableModule(ctx, args[0])
		}),
	})
	return cmd
}
