package plugins

import (
	"context"
	"errors"
	"fmt"

	"github.com/aliceout/nodea/internal/client/services"
	"github.com/aliceout/nodea/internal/common"
	"github.com/aliceout/nodea/internal/logging"
)

// Resolver gives the importer the plugin and context of a module id. It
// fails for unknown or disabled modules.
type Resolver func(ctx context.Context, moduleID string) (Plugin, Context, error)

type ImportReport struct {
	Created int
	Skipped int
	Failed  int
	// Unpromoted lists records created whose promotion failed.
	Unpromoted []string
}

type Importer struct {
	Logger logging.Logger
}

func NewImporter(log logging.Logger) *Importer {
	return &Importer{Logger: log}
}

type moduleState struct {
	plugin   Plugin
	pc       Context
	existing map[string]struct{}
	err      error
}

// Import stores the items of b that are not there yet. An item is a
// duplicate when its natural key is already present on the server or was
// imported earlier in the same run. Per-item failures are counted and the
// batch goes on; only a bad bundle header stops it.
func (im *Importer) Import(ctx context.Context, b *Bundle, resolve Resolver) (ImportReport, error) {
	var report ImportReport
	if b == nil || b.App != BundleApp {
		return report, fmt.Errorf("%w: not a %s bundle", common.ErrorValidation, BundleApp)
	}
	if b.FormatVersion > FormatVersion {
		return report, fmt.Errorf("%w: bundle format %d is newer than %d", common.ErrorValidation, b.FormatVersion, FormatVersion)
	}

	modules := map[string]*moduleState{}

	for i, item := range b.Items {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		ms, ok := modules[item.Module]
		if !ok {
			ms = &moduleState{}
			ms.plugin, ms.pc, ms.err = resolve(ctx, item.Module)
			if ms.err == nil {
				ms.existing, ms.err = ms.plugin.ListExistingKeys(ctx, ms.pc)
			}
			if ms.existing == nil {
				ms.existing = make(map[string]struct{})
			}
			if ms.err != nil {
				im.Logger.Warn(ctx, "import module unavailable", "module", item.Module, "error", ms.err)
			}
			modules[item.Module] = ms
		}
		if ms.err != nil {
			report.Failed++
			continue
		}
		if item.Version > ms.plugin.Meta().Version {
			im.Logger.Warn(ctx, "import item from newer module version", "module", item.Module, "index", i, "version", item.Version)
			report.Failed++
			continue
		}

		key := ms.plugin.NaturalKey(item.Payload)
		if _, dup := ms.existing[key]; dup {
			report.Skipped++
			continue
		}

		res, err := ms.plugin.ImportHandler(ctx, item.Payload, ms.pc)
		if err != nil {
			var pe *services.PromotionError
			if !errors.As(err, &pe) {
				im.Logger.Warn(ctx, "import item failed", "module", item.Module, "index", i, "error", err)
				report.Failed++
				continue
			}
			report.Unpromoted = append(report.Unpromoted, pe.RecordID)
		}
		if res.Action == ActionCreated {
			report.Created++
		}
		ms.existing[key] = struct{}{}
	}
	return report, nil
}
