package runtime

import (
	"context"

	"github.com/wasmlink/wasmlink/errors"
)

// Module is a compiled guest binary. Instantiate may be called multiple
// times; each instance has independent memory and pending futures.
type Module struct {
	runtime  *Runtime
	compiled CompiledModule
}

func (m *Module) Instantiate(ctx context.Context) (*Instance, error) {
	guest, err := m.compiled.Instantiate(ctx)
	if err != nil {
		return nil, errors.Load("instantiate module", err)
	}
	inst := &Instance{
		runtime: m.runtime,
		guest:   guest,
		pending: newPendingTable(),
		log:     m.runtime.log,
	}
	m.runtime.track(guest, inst)
	return inst, nil
}

// Close releases the compiled module. Instances stay usable until closed
// individually.
func (m *Module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}
