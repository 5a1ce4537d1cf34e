package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wasmlink/wasmlink/engine"
	"github.com/wasmlink/wasmlink/internal/config"
	"github.com/wasmlink/wasmlink/protocol"
)

func newInspectCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [wasm-file]",
		Short: "Show the declared protocol and, given a guest, its symbol table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wasmFile := ""
			if len(args) == 1 {
				wasmFile = args[0]
			}
			return inspect(cmd.Context(), *cfgPath, wasmFile)
		},
	}
}

func inspect(ctx context.Context, cfgPath, wasmFile string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	proto, err := cfg.BuildProtocol()
	if err != nil {
		return err
	}
	if err := proto.Validate(); err != nil {
		return err
	}

	fmt.Printf("Protocol: %s\n", proto.Name())
	fmt.Printf("\nExports (host -> guest):\n")
	for _, fn := range proto.Exports() {
		fmt.Printf("  %-40s %s\n", formatFunction(fn), protocol.GuestExportSymbol(fn.Name))
	}
	fmt.Printf("\nImports (guest -> host, namespace %q):\n", protocol.ImportNamespace)
	for _, fn := range proto.Imports() {
		fmt.Printf("  %-40s %s\n", formatFunction(fn), protocol.HostImportSymbol(fn.Name))
	}

	if wasmFile == "" {
		return nil
	}

	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return err
	}
	eng, err := engine.New(ctx)
	if err != nil {
		return err
	}
	defer eng.Close(ctx)

	mod, err := eng.Compile(ctx, data)
	if err != nil {
		return err
	}

	exported := make(map[string]bool)
	fmt.Printf("\nGuest %s\n\nRaw exports:\n", wasmFile)
	for _, name := range mod.ExportedFunctions() {
		exported[name] = true
		fmt.Printf("  %s\n", name)
	}
	fmt.Printf("\nRaw imports:\n")
	for _, name := range mod.ImportedFunctions() {
		fmt.Printf("  %s\n", name)
	}

	fmt.Printf("\nProtocol coverage:\n")
	report := func(symbol string) {
		state := "present"
		if !exported[symbol] {
			state = "MISSING"
		}
		fmt.Printf("  %-40s %s\n", symbol, state)
	}
	report(protocol.MallocExport)
	report(protocol.FreeExport)
	for _, fn := range proto.Exports() {
		report(protocol.GuestExportSymbol(fn.Name))
	}
	if hasAsync(proto.Imports()) {
		report(protocol.GuestResolveExport)
	}
	return nil
}

func hasAsync(fns protocol.FunctionList) bool {
	for _, fn := range fns {
		if fn.IsAsync {
			return true
		}
	}
	return false
}
