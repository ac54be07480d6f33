package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aliceout/nodea/internal/client/plugins"
	"github.com/aliceout/nodea/internal/client/services"
	"github.com/aliceout/nodea/internal/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const summaryWidth = 60

// readPayload parses data, or prompts for a JSON object when data is empty.
func (a *App) readPayload(data string) (plugins.Plain, error) {
	if data == "" {
		var err error
		if data, err = GetMultiline(a.reader, "Enter the entry as a JSON object", a.prompt); err != nil {
			return nil, err
		}
	}
	var p plugins.Plain
	if err := json.Unmarshal([]byte(data), &p); err != nil || p == nil {
		return nil, fmt.Errorf("%w: entry must be a JSON object", common.ErrorValidation)
	}
	return p, nil
}

// AddRecord stores a new entry in moduleID and promotes it.
func (a *App) AddRecord(ctx context.Context, moduleID, data string) error {
	p, pc, err := a.moduleContext(ctx, moduleID)
	if err != nil {
		return err
	}
	payload, err := a.readPayload(data)
	if err != nil {
		return err
	}

	res, err := p.ImportHandler(ctx, payload, pc)
	var pe *services.PromotionError
	if errors.As(err, &pe) {
		a.printf("%s entry %s stored but not yet protected: %v\n", color.YellowString("!"), res.ID, pe.Err)
		return nil
	}
	if err != nil {
		return err
	}
	a.printf("%s entry %s added\n", color.GreenString("✓"), res.ID)
	return nil
}

// ListRecords prints one page of moduleID. Entries that cannot be opened
// are counted, not shown.
func (a *App) ListRecords(ctx context.Context, moduleID string, page, perPage int) error {
	scope, pc, err := a.scope(ctx, moduleID)
	if err != nil {
		return err
	}
	res, err := a.records.List(ctx, scope, pc.Key, page, perPage)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUPDATED\tENTRY")
	for _, it := range res.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", it.ID, it.Updated.Local().Format(time.DateTime), summarize(it.Plaintext))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	a.printf("page %d/%d, %d entries\n", res.Page, res.TotalPages, res.TotalItems)
	if len(res.Failed) > 0 {
		a.printf("%s %d entries on this page could not be opened\n", color.YellowString("!"), len(res.Failed))
	}
	return nil
}

func (a *App) ShowRecord(ctx context.Context, moduleID, id string) error {
	scope, pc, err := a.scope(ctx, moduleID)
	if err != nil {
		return err
	}
	it, err := a.records.Get(ctx, scope, id, pc.Key)
	if err != nil {
		return err
	}

	var v any
	if err := json.Unmarshal(it.Plaintext, &v); err != nil {
		a.printf("%s\n", it.Plaintext)
		return nil
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	a.printf("%s %s\n%s\n", color.CyanString("entry"), it.ID, pretty)
	return nil
}

func (a *App) UpdateRecord(ctx context.Context, moduleID, id, data string) error {
	scope, pc, err := a.scope(ctx, moduleID)
	if err != nil {
		return err
	}
	payload, err := a.readPayload(data)
	if err != nil {
		return err
	}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := a.records.Update(ctx, scope, id, pc.Key, plaintext); err != nil {
		return err
	}
	a.printf("%s entry %s updated\n", color.GreenString("✓"), id)
	return nil
}

func (a *App) DeleteRecord(ctx context.Context, moduleID, id string) error {
	scope, pc, err := a.scope(ctx, moduleID)
	if err != nil {
		return err
	}
	if err := a.records.Delete(ctx, scope, id, pc.Key); err != nil {
		return err
	}
	a.printf("%s entry %s deleted\n", color.GreenString("✓"), id)
	return nil
}

// summarize flattens a payload to a single line for tables.
func summarize(plaintext []byte) string {
	s := strings.Join(strings.Fields(string(plaintext)), " ")
	if len(s) > summaryWidth {
		return s[:summaryWidth-3] + "..."
	}
	return s
}

func (r *runner) recordsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "records",
		Aliases: []string{"r"},
		Short:   "Add, list, show, update and delete entries of a module",
		Long: `Works on the encrypted entries of one enabled module.

Entries are JSON objects. Pass them with --data or type them when asked.

Examples:
  nodea records add mood --data '{"date":"2024-05-01","mood_score":3}'
  nodea records list mood --page 2
  nodea records delete mood 0f8e3c1a-6d3e-4c9a-8f4b-2f1a0b9c7d6e`,
	}

	var addData string
	add := &cobra.Command{
		Use:   "add <module>",
		Short: "Add an entry",
		Args:  cobra.ExactArgs(1),
		RunE: r.withApp(func(ctx context.Context, a *App, args []string) error {
			return a.AddRecord(ctx, args[0], addData)
		}),
	}
	add.Flags().StringVarP(&addData, "data", "d", "", "entry as a JSON object")

	var page, perPage int
	list := &cobra.Command{
		Use:     "list <module>",
		Aliases: []string{"l", "ls"},
		Short:   "List entries",
		Args:    cobra.ExactArgs(1),
		RunE: r.withApp(func(ctx context.Context, a *App, args []string) error {
			return a.ListRecords(ctx, args[0], page, perPage)
		}),
	}
	list.Flags().IntVarP(&page, "page", "p", 1, "page number")
	list.Flags().IntVar(&perPage, "per-page", 20, "entries per page")

	show := &cobra.Command{
		Use:   "show <module> <id>",
		Short: "Show one entry",
		Args:  cobra.ExactArgs(2),
		RunE: r.withApp(func(ctx context.Context, a *App, args []string) error {
			return a.ShowRecord(ctx, args[0], args[1])
		}),
	}

	var updateData string
	update := &cobra.Command{
		Use:   "update <module> <id>",
		Short: "Replace the content of an entry",
		Args:  cobra.ExactArgs(2),
		RunE: r.withApp(func(ctx context.Context, a *App, args []string) error {
			return a.UpdateRecord(ctx, args[0], args[1], updateData)
		}),
	}
	update.Flags().StringVarP(&updateData, "data", "d", "", "new entry as a JSON object")

	del := &cobra.Command{
		Use:     "delete <module> <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an entry",
		Args:    cobra.ExactArgs(2),
		RunE: r.withApp(func(ctx context.Context, a *App, args []string) error {
			return a.DeleteRecord(ctx, args[0], args[1])
		}),
	}

	cmd.AddCommand(add, list, show, update, del)
	return cmd
}
