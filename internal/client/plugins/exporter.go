package plugins

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aliceout/nodea/internal/client/services"
	"github.com/aliceout/nodea/internal/logging"
)

const (
	BundleApp     = "nodea"
	FormatVersion = 1
)

// Bundle is the export file format.
type Bundle struct {
	App           string    `json:"app"`
	FormatVersion int       `json:"format_version"`
	ExportedAt    time.Time `json:"exported_at"`
	Items         []Item    `json:"items"`
}

// Target pairs a module with the user context it runs in.
type Target struct {
	Plugin  Plugin
	Context Context
}

type ExportReport struct {
	Exported map[string]int
	// Skipped counts records that could not be decrypted or parsed.
	Skipped map[string]int
}

type Exporter struct {
	PageSize int
	Now      func() time.Time
	Logger   logging.Logger
}

func NewExporter(pageSize int, log logging.Logger) *Exporter {
	return &Exporter{PageSize: pageSize, Now: time.Now, Logger: log}
}

// Export reads every target into one bundle. Unreadable records are
// counted and skipped; a request failure aborts the export.
func (e *Exporter) Export(ctx context.Context, targets []Target) (*Bundle, ExportReport, error) {
	report := ExportReport{Exported: map[string]int{}, Skipped: map[string]int{}}
	bundle := &Bundle{
		App:           BundleApp,
		FormatVersion: FormatVersion,
		ExportedAt:    e.Now().UTC(),
		Items:         []Item{},
	}

	for _, t := range targets {
		id := t.Plugin.Meta().ID
		for p, err := range t.Plugin.ExportQuery(ctx, t.Context, e.PageSize) {
			if err != nil {
				var ie *services.ItemError
				if errors.As(err, &ie) {
					report.Skipped[id]++
					e.Logger.Warn(ctx, "export skipped record", "module", id, "id", ie.RecordID, "error", ie.Err)
					continue
				}
				return nil, report, fmt.Errorf("export %s: %w", id, err)
			}
			bundle.Items = append(bundle.Items, t.Plugin.ExportSerialize(p))
			report.Exported[id]++
		}
	}
	return bundle, report, nil
}
