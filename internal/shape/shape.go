// Package shape defines the immutable hardware descriptor that keys every
// warm queue in the system.
package shape

import "fmt"

// Shape is an immutable descriptor of a VM's hardware profile.
type Shape struct {
	VCPU     int    `json:"vcpu"`
	RAMGB    int    `json:"ram_gb"`
	GPUModel string `json:"gpu_model"`
}

// Key returns the canonical textual form used as a warm-queue map key:
// "{vcpu}c-{ram_gb}g-{gpu_model}".
func (s Shape) Key() string {
	return fmt.Sprintf("%dc-%dg-%s", s.VCPU, s.RAMGB, s.GPUModel)
}

func (s Shape) String() string {
	return s.Key()
}
