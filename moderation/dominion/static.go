package dominion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// StaticDirectory is a fixed in-memory mapping, typically loaded from a JSON file of the form
// {"dominion-id": ["territory-id", ...]}.
type StaticDirectory struct {
	lk        sync.RWMutex
	territory map[string]string
}

var _ Directory = (*StaticDirectory)(nil)

func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{
		territory: make(map[string]string),
	}
}

func (d *StaticDirectory) DominionOf(ctx context.Context, territoryID string) (string, error) {
	d.lk.RLock()
	defer d.lk.RUnlock()
	dom, ok := d.territory[territoryID]
	if !ok {
		return "", unknown(territoryID)
	}
	return dom, nil
}

// Add assigns a territory to a dominion, replacing any previous owner.
func (d *StaticDirectory) Add(dominionID string, territoryIDs ...string) {
	d.lk.Lock()
	defer d.lk.Unlock()
	for _, t := range territoryIDs {
		d.territory[t] = dominionID
	}
}

// Dominions returns the mapping in file form.
func (d *StaticDirectory) Dominions() map[string][]string {
	d.lk.RLock()
	defer d.lk.RUnlock()
	out := make(map[string][]string)
	for t, dom := range d.territory {
		out[dom] = append(out[dom], t)
	}
	return out
}

func (d *StaticDirectory) LoadFromFileJSON(p string) error {

	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	var doms map[string][]string
	if err := json.Unmarshal(raw, &doms); err != nil {
		return fmt.Errorf("parsing dominion file %s: %w", p, err)
	}

	// a territory listed under two dominions is a configuration error
	seen := make(map[string]string)
	for dom, l := range doms {
		for _, t := range l {
			if prev, ok := seen[t]; ok && prev != dom {
				return fmt.Errorf("territory %s listed under both %s and %s", t, prev, dom)
			}
			seen[t] = dom
		}
	}

	d.lk.Lock()
	defer d.lk.Unlock()
	for t, dom := range seen {
		d.territory[t] = dom
	}
	return nil
}
