package units

import (
	"context"
	"sync/atomic"
)

// Catalog keeps a Directory in step with a Store. Readers always see a
// complete snapshot; Save swaps in a fresh one.
type Catalog struct {
	store Store
	dir   atomic.Pointer[Directory]
}

// NewCatalog loads the current units from s.
func NewCatalog(ctx context.Context, s Store) (*Catalog, error) {
	c := &Catalog{store: s}
	if err := c.Reload(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload rebuilds the snapshot from the store.
func (c *Catalog) Reload(ctx context.Context) error {
	dir, err := Load(ctx, c.store)
	if err != nil {
		return err
	}
	c.dir.Store(dir)
	return nil
}

// Save upserts u and refreshes the snapshot.
func (c *Catalog) Save(ctx context.Context, u Unit) (Unit, error) {
	u = u.Normalized()
	if err := c.store.SaveUnit(ctx, u); err != nil {
		return Unit{}, err
	}
	return u, c.Reload(ctx)
}

// Directory returns the current snapshot.
func (c *Catalog) Directory() *Directory {
	return c.dir.Load()
}

func (c *Catalog) Lookup(code any) (Unit, bool) {
	return c.Directory().Lookup(code)
}
