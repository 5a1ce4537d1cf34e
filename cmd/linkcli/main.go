// linkcli inspects and calls wasm guests that speak the wasmlink FatPtr
// protocol. The protocol itself is declared in a TOML config file; see
// internal/config for the format.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wasmlink/wasmlink/engine"
	"github.com/wasmlink/wasmlink/errors"
	"github.com/wasmlink/wasmlink/internal/config"
	"github.com/wasmlink/wasmlink/protocol"
	"github.com/wasmlink/wasmlink/runtime"
	"github.com/wasmlink/wasmlink/types"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:           "linkcli",
		Short:         "Inspect and call wasm guests over a declared protocol",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "linkcli.toml",
		"path to the protocol config file")
	cmd.AddCommand(
		newInspectCmd(&cfgPath),
		newCallCmd(&cfgPath),
		newInteractiveCmd(&cfgPath),
	)
	return cmd
}

// session bundles the loaded config and a runtime serving its protocol,
// with every declared import stubbed by a logging handler.
type session struct {
	cfg *config.Config
	rt  *runtime.Runtime
	log *zap.Logger
}

func openSession(ctx context.Context, cfgPath string) (*session, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	log, err := cfg.Logger()
	if err != nil {
		return nil, err
	}
	proto, err := cfg.BuildProtocol()
	if err != nil {
		return nil, err
	}

	engOpts := []engine.Option{engine.WithLogger(log)}
	if cfg.MemoryLimitPages > 0 {
		engOpts = append(engOpts, engine.WithMemoryLimitPages(cfg.MemoryLimitPages))
	}
	eng, err := engine.New(ctx, engOpts...)
	if err != nil {
		return nil, err
	}

	rt, err := runtime.New(ctx,
		runtime.WithProtocol(proto),
		runtime.WithLogger(log),
		runtime.WithEngine(runtime.WrapEngine(eng)),
	)
	if err != nil {
		_ = eng.Close(ctx)
		return nil, err
	}

	s := &session{cfg: cfg, rt: rt, log: log}
	for _, fn := range proto.Imports() {
		if err := rt.RegisterImport(fn.Name, s.stubHandler(fn)); err != nil {
			_ = rt.Close(ctx)
			return nil, err
		}
	}
	return s, nil
}

func (s *session) close(ctx context.Context) {
	_ = s.rt.Close(ctx)
	_ = s.log.Sync()
}

// stubHandler logs the call and returns the zero value of the declared
// return type. It stands in for host functionality the CLI does not have.
func (s *session) stubHandler(fn protocol.Function) runtime.ImportHandler {
	return func(_ context.Context, args []any) (any, error) {
		s.log.Info("guest import call",
			zap.String("function", fn.Name),
			zap.Any("args", args))
		if fn.Ret == nil {
			return nil, nil
		}
		return zeroValue(*fn.Ret, s.rt.Protocol().Types())
	}
}

func zeroValue(ident types.TypeIdent, tm *types.TypeMap) (any, error) {
	ty, ok := tm.Get(ident)
	if !ok {
		return nil, errors.UnresolvedType(ident.String())
	}
	switch t := ty.(type) {
	case types.Primitive:
		switch t {
		case types.Bool:
			return false, nil
		case types.F32:
			return float32(0), nil
		case types.F64:
			return float64(0), nil
		case types.U8, types.U16, types.U32, types.U64:
			return uint64(0), nil
		default:
			return int64(0), nil
		}
	case types.String:
		return "", nil
	case types.Unit:
		return nil, nil
	case types.Container:
		if t.Name == "Option" {
			return nil, nil
		}
		return zeroValue(t.Inner, tm)
	case types.List, types.Set:
		return []any{}, nil
	case types.Map:
		return map[string]any{}, nil
	}
	return nil, errors.Unsupported(errors.PhaseHost,
		"stub return value for "+ident.String())
}

// parseArg converts a command-line string into the canonical value form
// for the declared argument type. Only scalars are representable.
func parseArg(raw string, ident types.TypeIdent, tm *types.TypeMap) (any, error) {
	ty, ok := tm.Get(ident)
	if !ok {
		return nil, errors.UnresolvedType(ident.String())
	}
	switch t := ty.(type) {
	case types.String:
		return raw, nil
	case types.Primitive:
		switch t {
		case types.Bool:
			return raw == "true" || raw == "1", nil
		case types.U8, types.U16, types.U32, types.U64:
			v, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return nil, errors.InvalidInput(errors.PhaseCall, raw+" is not a "+t.String())
			}
			return v, nil
		case types.I8, types.I16, types.I32, types.I64:
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, errors.InvalidInput(errors.PhaseCall, raw+" is not a "+t.String())
			}
			return v, nil
		case types.F32, types.F64:
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, errors.InvalidInput(errors.PhaseCall, raw+" is not a "+t.String())
			}
			return v, nil
		}
	}
	return nil, errors.Unsupported(errors.PhaseCall,
		"command-line value for "+ident.String())
}

func formatFunction(fn protocol.Function) string {
	var b strings.Builder
	b.WriteString(fn.Name)
	b.WriteByte('(')
	for i, arg := range fn.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(arg.Name)
		b.WriteString(": ")
		b.WriteString(arg.Type.String())
	}
	b.WriteByte(')')
	if fn.Ret != nil {
		b.WriteString(" -> ")
		b.WriteString(fn.Ret.String())
	}
	if fn.IsAsync {
		b.WriteString(" [async]")
	}
	return b.String()
}
