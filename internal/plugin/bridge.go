package plugin

import (
	"context"
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero/api"

	"github.com/bylapidist/dtifx-sub001/internal/dtifxerr"
)

// bridge is a generic JSON-in/JSON-out RPC layer over one module's linear
// memory, grounded on openfroyo/pkg/providers/host/bridge.go's
// callWASMFunction/allocate/deallocate convention. Unlike the teacher's
// WASMBridge, which binds a fixed provider-lifecycle function set at
// construction time, this bridge looks up exported functions by name on
// each call, since a plugin's register/evaluate entry points are
// configuration-driven rather than fixed.
type bridge struct {
	module api.Module
	memory api.Memory
	malloc api.Function
	free   api.Function
}

func newBridge(module api.Module) (*bridge, error) {
	memory := module.Memory()
	if memory == nil {
		return nil, dtifxerr.New(dtifxerr.ClassConfiguration, dtifxerr.CodeConfigInvalid,
			"plugin module exports no linear memory")
	}
	malloc := module.ExportedFunction("malloc")
	if malloc == nil {
		return nil, dtifxerr.New(dtifxerr.ClassConfiguration, dtifxerr.CodeConfigInvalid,
			"plugin module does not export malloc")
	}
	free := module.ExportedFunction("free")
	if free == nil {
		return nil, dtifxerr.New(dtifxerr.ClassConfiguration, dtifxerr.CodeConfigInvalid,
			"plugin module does not export free")
	}
	return &bridge{module: module, memory: memory, malloc: malloc, free: free}, nil
}

// call invokes the exported function named fn, passing input as a
// (ptr, len) pair and expecting a packed (ptr<<32)|len uint64 return value
// pointing at a JSON-encoded response in the module's linear memory.
func (b *bridge) call(ctx context.Context, fn string, input []byte) ([]byte, error) {
	target := b.module.ExportedFunction(fn)
	if target == nil {
		return nil, fmt.Errorf("plugin module does not export %q", fn)
	}

	inputPtr, err := b.allocate(ctx, uint32(len(input)))
	if err != nil {
		return nil, err
	}
	defer b.deallocate(ctx, inputPtr, uint32(len(input)))

	if !b.memory.Write(inputPtr, input) {
		return nil, fmt.Errorf("failed to write input to plugin memory for %q", fn)
	}

	results, err := target.Call(ctx, uint64(inputPtr), uint64(len(input)))
	if err != nil {
		return nil, fmt.Errorf("plugin function %q failed: %w", fn, err)
	}
	if len(results) != 1 {
		return nil, fmt.Errorf("plugin function %q returned %d values, expected 1", fn, len(results))
	}

	packed := results[0]
	outputPtr := uint32(packed >> 32)
	outputLen := uint32(packed)
	defer b.deallocate(ctx, outputPtr, outputLen)

	output, ok := b.memory.Read(outputPtr, outputLen)
	if !ok {
		return nil, fmt.Errorf("failed to read output from plugin memory for %q", fn)
	}
	// copy out of the module's memory before it is reused by a later call.
	out := make([]byte, len(output))
	copy(out, output)
	return out, nil
}

func (b *bridge) allocate(ctx context.Context, size uint32) (uint32, error) {
	results, err := b.malloc.Call(ctx, uint64(size))
	if err != nil {
		return 0, fmt.Errorf("plugin malloc failed: %w", err)
	}
	return uint32(results[0]), nil
}

func (b *bridge) deallocate(ctx context.Context, ptr, size uint32) {
	_, _ = b.free.Call(ctx, uint64(ptr), uint64(size))
}

// filePathFromURL strips the file:// scheme a pluginspec.Resolved.URL
// always carries, returning the local filesystem path underneath.
func filePathFromURL(fileURL string) (string, error) {
	const prefix = "file://"
	if !strings.HasPrefix(fileURL, prefix) {
		return "", dtifxerr.New(dtifxerr.ClassConfiguration, dtifxerr.CodeUnsupportedSpecifier,
			"expected a file:// plugin specifier, got: "+fileURL)
	}
	return strings.TrimPrefix(fileURL, prefix), nil
}
