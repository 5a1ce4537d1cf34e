package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wasmlink/wasmlink/errors"
)

func newCallCmd(cfgPath *string) *cobra.Command {
	var (
		funcName string
		rawArgs  []string
	)
	cmd := &cobra.Command{
		Use:   "call <wasm-file>",
		Short: "Call one declared export and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd.Context(), *cfgPath, args[0], funcName, rawArgs)
		},
	}
	cmd.Flags().StringVarP(&funcName, "func", "f", "", "declared export to call")
	cmd.Flags().StringArrayVarP(&rawArgs, "arg", "a", nil,
		"argument value, repeat per declared argument")
	_ = cmd.MarkFlagRequired("func")
	return cmd
}

func call(ctx context.Context, cfgPath, wasmFile, funcName string, rawArgs []string) error {
	s, err := openSession(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	proto := s.rt.Protocol()
	fn, ok := proto.Exports().Get(funcName)
	if !ok {
		return errors.NotFound(errors.PhaseCall, "exported function", funcName)
	}
	if len(rawArgs) != len(fn.Args) {
		return errors.InvalidInput(errors.PhaseCall,
			fmt.Sprintf("%s takes %d arguments, got %d", funcName, len(fn.Args), len(rawArgs)))
	}

	args := make([]any, len(rawArgs))
	for i, raw := range rawArgs {
		if args[i], err = parseArg(raw, fn.Args[i].Type, proto.Types()); err != nil {
			return err
		}
	}

	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return err
	}
	mod, err := s.rt.Load(ctx, data)
	if err != nil {
		return err
	}
	inst, err := mod.Instantiate(ctx)
	if err != nil {
		return err
	}
	defer inst.Close(ctx)

	result, err := inst.Call(ctx, funcName, args...)
	if err != nil {
		return err
	}
	if fn.Ret == nil {
		fmt.Println("ok")
		return nil
	}
	fmt.Printf("%v\n", result)
	return nil
}
