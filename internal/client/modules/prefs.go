package modules

import (
	"context"
	"fmt"

	"github.com/aliceout/nodea/internal/cryptox"
	"github.com/aliceout/nodea/internal/wire"
)

// Prefs is the second sealed user field: free-form user preferences.
type Prefs struct {
	client StateClient
}

func NewPrefs(client StateClient) *Prefs {
	return &Prefs{client: client}
}

// Load opens the preferences. It follows the same rules as Store.Load.
func (p *Prefs) Load(ctx context.Context, key cryptox.RawKey) (map[string]any, State, error) {
	if err := key.Validate(); err != nil {
		return nil, StateEmpty, err
	}
	raw, err := p.client.GetState(ctx, wire.StatePrefs)
	if err != nil {
		return nil, StateEmpty, fmt.Errorf("load prefs: %w", err)
	}

	out := map[string]any{}
	state, err := openField(raw, key, &out)
	if err != nil {
		return nil, state, err
	}
	if state == StateUnparsable || out == nil {
		out = map[string]any{}
	}
	return out, state, nil
}

func (p *Prefs) Save(ctx context.Context, key cryptox.RawKey, prefs map[string]any) error {
	value, err := sealField(prefs, key)
	if err != nil {
		return err
	}
	if err := p.client.PutState(ctx, wire.StatePrefs, value); err != nil {
		return fmt.Errorf("save prefs: %w", err)
	}
	return nil
}
