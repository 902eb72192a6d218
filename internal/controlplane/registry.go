package controlplane

import (
	"fmt"

	"github.com/hypercore/hc/internal/hcerr"
)

// CreatePool registers a new empty pool. An unset TenantID defaults to
// "default"; an unset Name defaults to the generated pool ID.
func (c *Controller) CreatePool(spec CreatePoolSpec) Pool {
	id := c.idgen.New()

	tenantID := spec.TenantID
	if tenantID == "" {
		tenantID = "default"
	}
	name := spec.Name
	if name == "" {
		name = id
	}

	p := &poolState{id: id, name: name, tenantID: tenantID}

	c.poolsMu.Lock()
	c.pools[id] = p
	c.poolsMu.Unlock()

	return snapshotPool(p)
}

// ListPools returns every registered pool.
func (c *Controller) ListPools() []Pool {
	c.poolsMu.Lock()
	pools := make([]*poolState, 0, len(c.pools))
	for _, p := range c.pools {
		pools = append(pools, p)
	}
	c.poolsMu.Unlock()

	out := make([]Pool, len(pools))
	for i, p := range pools {
		out[i] = snapshotPool(p)
	}
	return out
}

// ListPoolHosts returns the historical membership log for one pool: every
// VM ID ever admitted, not only those currently warm or running.
func (c *Controller) ListPoolHosts(poolID string) ([]string, error) {
	p, err := c.getPool(poolID)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.guests))
	copy(out, p.guests)
	return out, nil
}

func (c *Controller) getPool(poolID string) (*poolState, error) {
	c.poolsMu.Lock()
	defer c.poolsMu.Unlock()
	p, ok := c.pools[poolID]
	if !ok {
		return nil, fmt.Errorf("%w: pool %s", hcerr.ErrNotFound, poolID)
	}
	return p, nil
}

func (p *poolState) admit(vmID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.guests = append(p.guests, vmID)
}
