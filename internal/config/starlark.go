package config

import (
	"context"
	"fmt"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/bylapidist/dtifx-sub001/internal/dtif"
	"github.com/bylapidist/dtifx-sub001/internal/dtifxerr"
)

// StarlarkEvaluator runs a virtual source's `produce` function in a
// sandboxed Starlark thread and converts its returned dict into a
// dtif.Document, per §6's VirtualSource / `produce(args) -> dict` contract.
type StarlarkEvaluator struct {
	Timeout time.Duration
}

// NewStarlarkEvaluator constructs a StarlarkEvaluator. timeout of zero
// defaults to 30s.
func NewStarlarkEvaluator(timeout time.Duration) *StarlarkEvaluator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &StarlarkEvaluator{Timeout: timeout}
}

// Producer returns a dtif.VirtualProducer bound to one module's source and
// args; the planner calls it once per build.
func (se *StarlarkEvaluator) Producer(source string, args map[string]any) dtif.VirtualProducer {
	return func() (dtif.Document, error) {
		return se.evaluate(source, args)
	}
}

func (se *StarlarkEvaluator) evaluate(source string, args map[string]any) (dtif.Document, error) {
	ctx, cancel := context.WithTimeout(context.Background(), se.Timeout)
	defer cancel()

	type result struct {
		doc dtif.Document
		err error
	}
	done := make(chan result, 1)

	go func() {
		doc, err := se.run(source, args)
		done <- result{doc: doc, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, dtifxerr.New(dtifxerr.ClassConfiguration, dtifxerr.CodeConfigInvalid,
			fmt.Sprintf("virtual source timed out after %s", se.Timeout))
	case r := <-done:
		return r.doc, r.err
	}
}

func (se *StarlarkEvaluator) run(source string, args map[string]any) (dtif.Document, error) {
	thread := &starlark.Thread{
		Name:  "dtifx-virtual-source",
		Print: func(*starlark.Thread, string) {},
	}

	predeclared := starlark.StringDict{
		"struct":    starlarkstruct.Default,
		"range":     starlark.NewBuiltin("range", builtinRange),
		"enumerate": starlark.NewBuiltin("enumerate", builtinEnumerate),
		"zip":       starlark.NewBuiltin("zip", builtinZip),
	}

	argsDict := starlark.NewDict(len(args))
	for k, v := range args {
		sv, err := toStarlarkValue(v)
		if err != nil {
			return nil, dtifxerr.Wrap(dtifxerr.ClassConfiguration, dtifxerr.CodeConfigInvalid,
				"invalid virtual source arg "+k, err)
		}
		if err := argsDict.SetKey(starlark.String(k), sv); err != nil {
			return nil, err
		}
	}

	globals, err := starlark.ExecFile(thread, "virtual-source.star", source, predeclared)
	if err != nil {
		return nil, dtifxerr.Wrap(dtifxerr.ClassConfiguration, dtifxerr.CodeConfigInvalid,
			"virtual source script failed to execute", err)
	}

	produce, ok := globals["produce"]
	if !ok {
		return nil, dtifxerr.New(dtifxerr.ClassConfiguration, dtifxerr.CodeConfigInvalid,
			"virtual source must define a top-level produce(args) function")
	}
	fn, ok := produce.(starlark.Callable)
	if !ok {
		return nil, dtifxerr.New(dtifxerr.ClassConfiguration, dtifxerr.CodeConfigInvalid,
			"produce must be callable")
	}

	ret, err := starlark.Call(thread, fn, starlark.Tuple{argsDict}, nil)
	if err != nil {
		return nil, dtifxerr.Wrap(dtifxerr.ClassConfiguration, dtifxerr.CodeConfigInvalid,
			"produce() failed", err)
	}

	body, err := fromStarlarkValue(ret)
	if err != nil {
		return nil, err
	}
	raw, ok := body.(map[string]any)
	if !ok {
		return nil, dtifxerr.New(dtifxerr.ClassConfiguration, dtifxerr.CodeConfigInvalid,
			"produce() must return a dict of pointer -> token")
	}
	return documentFromStarlark(raw)
}

func documentFromStarlark(raw map[string]any) (dtif.Document, error) {
	doc := make(dtif.Document, len(raw))
	for pointer, v := range raw {
		fields, ok := v.(map[string]any)
		if !ok {
			return nil, dtifxerr.New(dtifxerr.ClassConfiguration, dtifxerr.CodeConfigInvalid,
				"token at "+pointer+" must be a dict")
		}
		token := dtif.RawToken{}
		if t, ok := fields["type"].(string); ok {
			token.Type = t
		}
		if ref, ok := fields["$ref"].(string); ok {
			token.Ref = ref
		}
		if val, ok := fields["value"]; ok {
			token.Value = val
		}
		doc[pointer] = token
	}
	return doc, nil
}

// Built-in Starlark functions available to every virtual source, mirroring
// the built-ins every other configuration surface gets.

func builtinRange(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var start, stop, step int64 = 0, 0, 1
	switch len(args) {
	case 1:
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "stop", &stop); err != nil {
			return nil, err
		}
	case 2:
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "start", &start, "stop", &stop); err != nil {
			return nil, err
		}
	case 3:
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "start", &start, "stop", &stop, "step", &step); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("range takes 1 to 3 arguments, got %d", len(args))
	}
	if step == 0 {
		return nil, fmt.Errorf("range step cannot be zero")
	}
	var list []starlark.Value
	if step > 0 {
		for i := start; i < stop; i += step {
			list = append(list, starlark.MakeInt64(i))
		}
	} else {
		for i := start; i > stop; i += step {
			list = append(list, starlark.MakeInt64(i))
		}
	}
	return starlark.NewList(list), nil
}

func builtinEnumerate(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var iterable starlark.Iterable
	var start int64
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "iterable", &iterable, "start?", &start); err != nil {
		return nil, err
	}
	iter := iterable.Iterate()
	defer iter.Done()
	var list []starlark.Value
	var x starlark.Value
	i := start
	for iter.Next(&x) {
		list = append(list, starlark.Tuple{starlark.MakeInt64(i), x})
		i++
	}
	return starlark.NewList(list), nil
}

func builtinZip(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
	if len(args) == 0 {
		return starlark.NewList(nil), nil
	}
	iters := make([]starlark.Iterator, len(args))
	for i, arg := range args {
		iterable, ok := arg.(starlark.Iterable)
		if !ok {
			return nil, fmt.Errorf("zip argument %d is not iterable", i)
		}
		iters[i] = iterable.Iterate()
		defer iters[i].Done()
	}
	var list []starlark.Value
	for {
		tuple := make(starlark.Tuple, len(iters))
		for i, iter := range iters {
			if !iter.Next(&tuple[i]) {
				return starlark.NewList(list), nil
			}
		}
		list = append(list, tuple)
	}
}

func toStarlarkValue(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}
	switch val := v.(type) {
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil
	case map[string]any:
		dict := starlark.NewDict(len(val))
		for k, v := range val {
			sv, err := toStarlarkValue(v)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported type for starlark conversion: %T", v)
	}
}

func fromStarlarkValue(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large to convert")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		list := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlarkValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case *starlark.Dict:
		dict := make(map[string]any)
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string")
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	case *starlarkstruct.Struct:
		dict := make(map[string]any)
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				continue
			}
			value, err := fromStarlarkValue(attr)
			if err != nil {
				return nil, err
			}
			dict[name] = value
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}
