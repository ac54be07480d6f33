package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/aliceout/nodea/internal/client/plugins"
	"github.com/aliceout/nodea/internal/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func (a *App) export(ctx context.Context, only []string) (*plugins.Bundle, plugins.ExportReport, error) {
	targets, err := a.enabledTargets(ctx, only)
	if err != nil {
		return nil, plugins.ExportReport{}, err
	}
	return plugins.NewExporter(a.config.ExportPageSize, a.log).Export(ctx, targets)
}

// Export writes a plaintext bundle of the enabled modules to path, or to
// the output when path is empty.
func (a *App) Export(ctx context.Context, path string, only []string) error {
	bundle, report, err := a.export(ctx, only)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if path == "" {
		_, err = a.out.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	a.printf("%s exported to %s\n", color.GreenString("✓"), color.YellowString(path))
	a.printCounts("exported", report.Exported)
	a.printCounts("skipped", report.Skipped)
	return nil
}

// Import reads a bundle from path ("-" for the input) and stores the items
// that are not there yet.
func (a *App) Import(ctx context.Context, path string) error {
	// log in first: with "-" the password and the bundle share the input
	if _, err := a.ensureSession(ctx); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(a.reader)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return err
	}

	var bundle plugins.Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return fmt.Errorf("%w: %s is not a bundle: %v", common.ErrorValidation, path, err)
	}
	return a.importBundle(ctx, &bundle)
}

func (a *App) importBundle(ctx context.Context, bundle *plugins.Bundle) error {
	if _, err := a.ensureSession(ctx); err != nil {
		return err
	}
	report, err := plugins.NewImporter(a.log).Import(ctx, bundle, a.moduleContext)
	if err != nil {
		return err
	}

	a.printf("%s %d created, %d already present, %d failed\n", color.GreenString("✓"), report.Created, report.Skipped, report.Failed)
	if len(report.Unpromoted) > 0 {
		a.printf("%s %d entries stored but not yet protected\n", color.YellowString("!"), len(report.Unpromoted))
	}
	return nil
}

// BackupPush exports the enabled modules and uploads the sealed bundle.
func (a *App) BackupPush(ctx context.Context) error {
	sess, err := a.ensureSession(ctx)
	if err != nil {
		return err
	}
	bundle, report, err := a.export(ctx, nil)
	if err != nil {
		return err
	}
	key, err := a.backups.Push(ctx, bundle, sess.Key)
	if err != nil {
		return err
	}
	a.printf("%s backup stored as %s\n", color.GreenString("✓"), color.YellowString(key))
	a.printCounts("skipped", report.Skipped)
	return nil
}

// BackupPull fetches a backup. With restore it is imported, otherwise it
// is written out like an export.
func (a *App) BackupPull(ctx context.Context, key, path string, restore bool) error {
	sess, err := a.ensureSession(ctx)
	if err != nil {
		return err
	}
	bundle, err := a.backups.Pull(ctx, key, sess.Key)
	if err != nil {
		return err
	}
	if restore {
		return a.importBundle(ctx, bundle)
	}

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" {
		_, err = a.out.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func (a *App) printCounts(label string, counts map[string]int) {
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		a.printf("  %-8s %s: %d\n", id, label, counts[id])
	}
}

func (r *runner) exportCommand() *cobra.Command {
	var out string
	var only []string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export enabled modules as a plaintext bundle",
		Long: `Decrypts every entry of the enabled modules and writes them as one JSON
bundle. The bundle is NOT encrypted; use "backup push" for an encrypted copy.`,
		Args: cobra.NoArgs,
		RunE: r.withApp(func(ctx context.Context, a *App, _ []string) error {
			return a.Export(ctx, out, only)
		}),
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to this file instead of stdout")
	cmd.Flags().StringSliceVarP(&only, "module", "m", nil, "export only these modules")
	return cmd
}

func (r *runner) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Import a bundle, skipping entries that already exist",
		Args:  cobra.ExactArgs(1),
		RunE: r.withApp(func(ctx context.Context, a *App, args []string) error {
			return a.Import(ctx, args[0])
		}),
	}
}

func (r *runner) backupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Store or fetch an encrypted backup",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "push",
		Short: "Upload an encrypted export of the enabled modules",
		Args:  cobra.NoArgs,
		RunE: r.withApp(func(ctx context.Context, a *App, _ []string) error {
			return a.BackupPush(ctx)
		}),
	})

	var out string
	var restore bool
	pull := &cobra.Command{
		Use:   "pull [key]",
		Short: "Download a backup; the last pushed one by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: r.withApp(func(ctx context.Context, a *App, args []string) error {
			key := ""
			if len(args) == 1 {
				key = args[0]
			}
			return a.BackupPull(ctx, key, out, restore)
		}),
	}
	pull.Flags().StringVarP(&out, "out", "o", "", "write the bundle to this file instead of stdout")
	pull.Flags().BoolVar(&restore, "restore", false, "import the backup instead of printing it")
	cmd.AddCommand(pull)
	return cmd
}
