package protocol

import "github.com/wasmlink/wasmlink/errors"

// Emitter turns a validated protocol into importable source text for one
// target. Implementations live outside this module; the contract they must
// honor is: for every registered type, emit code producing and consuming
// the exact wire serialization, and for every function, emit a wrapper
// implementing the FatPtr handle/copy/free sequence in the target's native
// calling convention.
type Emitter interface {
	// Name identifies the target (used for NativeModules overrides).
	Name() string

	// Emit writes the generated bindings under outDir.
	Emit(p *Protocol, outDir string) error
}

// BindingConfig pairs an emitter with its output location.
type BindingConfig struct {
	Emitter Emitter
	OutDir  string
}

// Generate validates the protocol and runs every configured emitter.
// Validation failures abort before any emitter runs.
func Generate(p *Protocol, configs ...BindingConfig) error {
	if err := p.Validate(); err != nil {
		return err
	}
	for _, cfg := range configs {
		if cfg.Emitter == nil {
			return errors.InvalidInput(errors.PhaseGenerate, "binding config without emitter")
		}
		if err := cfg.Emitter.Emit(p, cfg.OutDir); err != nil {
			return errors.Wrap(errors.PhaseGenerate, errors.KindInvalidData, err,
				"emit "+cfg.Emitter.Name()+" bindings")
		}
	}
	return nil
}
