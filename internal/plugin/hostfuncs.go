package plugin

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// registerHostFunctions wires the capability-gated "env" host module a
// plugin module may import, grounded on
// openfroyo/pkg/providers/host/host.go's registerHostFunctions. Only the
// capabilities the manifest declared are functionally useful; every
// function is always exported so a module can be instantiated regardless
// of its manifest, but calls against an ungranted capability fail at the
// enforcer.
func registerHostFunctions(ctx context.Context, runtime wazero.Runtime, enforcer *CapabilityEnforcer) (api.Module, error) {
	builder := runtime.NewHostModuleBuilder("env")

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, urlPtr, urlLen, methodPtr, methodLen uint32) uint64 {
			urlBytes, ok := mod.Memory().Read(urlPtr, urlLen)
			if !ok {
				return packError("failed to read url from plugin memory")
			}
			methodBytes, ok := mod.Memory().Read(methodPtr, methodLen)
			if !ok {
				return packError("failed to read method from plugin memory")
			}
			resp, err := enforcer.HTTPRequest(ctx, string(methodBytes), string(urlBytes), nil)
			if err != nil {
				return packError(err.Error())
			}
			defer resp.Body.Close()
			return uint64(resp.StatusCode)
		}).
		Export("http_request")

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, messagePtr, messageLen uint32) uint32 {
			messageBytes, ok := mod.Memory().Read(messagePtr, messageLen)
			if !ok || !enforcer.Has(CapabilityLog) {
				return 1
			}
			enforcer.Log(string(messageBytes))
			return 0
		}).
		Export("log_message")

	return builder.Instantiate(ctx)
}

// packError is the http_request error return: the plugin sees status code
// 0. The message is discarded and is not logged.
func packError(message string) uint64 {
	return 0
}
