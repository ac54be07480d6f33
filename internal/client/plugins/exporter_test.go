package plugins

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aliceout/nodea/internal/client/services"
	"github.com/aliceout/nodea/internal/logging"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var goalsScope = services.Scope{Collection: "goals_entries", ModuleUserID: "m_goals"}

func fixedExporter() *Exporter {
	e := NewExporter(2, logging.Nop())
	e.Now = func() time.Time { return time.Date(2024, 5, 1, 14, 0, 0, 0, time.FixedZone("CEST", 2*3600)) }
	return e
}

func TestExport_Golden(t *testing.T) {
	store := newMemStore()
	store.add(moodScope, `{"date":"2024-04-30","mood_score":3,"comment":"Sunny walk"}`)
	store.addBroken(moodScope)
	store.add(moodScope, `{"date":"2024-05-01","mood_score":1}`)
	store.add(goalsScope, `{"title":"Learn Go","date":"2024-06-01","status":"open"}`)

	targets := []Target{
		{Plugin: Mood(), Context: Context{Records: store, ModuleUserID: "m_mood"}},
		{Plugin: Goals(), Context: Context{Records: store, ModuleUserID: "m_goals"}},
	}

	bundle, report, err := fixedExporter().Export(context.Background(), targets)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"mood": 2, "goals": 1}, report.Exported)
	assert.Equal(t, map[string]int{"mood": 1}, report.Skipped)

	data, err := json.MarshalIndent(bundle, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "export_bundle", append(data, '\n'))
}

func TestExport_TransportErrorAborts(t *testing.T) {
	store := newMemStore()
	store.listErr = errors.New("offline")

	_, _, err := fixedExporter().Export(context.Background(), []Target{
		{Plugin: Mood(), Context: Context{Records: store, ModuleUserID: "m_mood"}},
	})
	assert.ErrorContains(t, err, "export mood: offline")
}

func TestExport_Empty(t *testing.T) {
	bundle, report, err := fixedExporter().Export(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, BundleApp, bundle.App)
	assert.Equal(t, FormatVersion, bundle.FormatVersion)
	assert.NotNil(t, bundle.Items)
	assert.Empty(t, report.Exported)
	assert.Equal(t, "2024-05-01T12:00:00Z", bundle.ExportedAt.Format(time.RFC3339))
}
