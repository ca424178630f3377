// Copyright 2024 The nlexpr Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package wasm allows users to write their own functions as Wasm modules
// and register them with an evaluator model.
//
// An exported scalar function taking and returning float64 can be wrapped
// into an [nlexpr.Func] and registered like any other user function. Wasm
// functions carry no derivative information; attach hand-written Grad and
// Hess callbacks to the returned Func before registering if the function
// must be differentiated through, or leave them nil for evaluate-only use
// (which disables session Hessians when the function is multivariate).
package wasm

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"nlexpr.org/go/nlexpr"
)

// An Instance is a Wasm module loaded into memory, ready to have its
// exported functions wrapped.
type Instance struct {
	// ctx exists so that we have something to pass to Wazero functions,
	// but it's unused otherwise.
	ctx context.Context

	runtime wazero.Runtime
	module  api.Module
	name    string
}

// Load compiles and instantiates the Wasm module in the named file.
func Load(name string) (*Instance, error) {
	buf, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("can't load Wasm module: %w", err)
	}
	return LoadBytes(name, buf)
}

// LoadBytes is like [Load] for an in-memory module.
func LoadBytes(name string, buf []byte) (*Instance, error) {
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	mod, err := r.CompileModule(ctx, buf)
	if err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("can't compile Wasm module: %w", err)
	}
	wInst, err := r.InstantiateModule(ctx, mod, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("can't instantiate Wasm module: %w", err)
	}
	return &Instance{
		ctx:     ctx,
		runtime: r,
		module:  wInst,
		name:    name,
	}, nil
}

// Close releases the instance and all memory held by its runtime.
func (i *Instance) Close() error {
	return i.runtime.Close(i.ctx)
}

// Func wraps the exported guest function funcName as a user function of
// the given arity, registrable under name. The export must take arity
// float64 parameters and return one float64.
//
// A guest trap during evaluation surfaces as NaN, like any other numeric
// domain failure: the calling solver rejects the trial point.
func (i *Instance) Func(name, funcName string, arity int) (nlexpr.Func, error) {
	f := i.module.ExportedFunction(funcName)
	if f == nil {
		return nlexpr.Func{}, fmt.Errorf("can't find function %q in Wasm module %v", funcName, i.name)
	}
	def := f.Definition()
	if got := len(def.ParamTypes()); got != arity {
		return nlexpr.Func{}, fmt.Errorf("function %q in Wasm module %v takes %d parameters, want %d",
			funcName, i.name, got, arity)
	}
	for _, t := range def.ParamTypes() {
		if t != api.ValueTypeF64 {
			return nlexpr.Func{}, fmt.Errorf("function %q in Wasm module %v has a non-float64 parameter",
				funcName, i.name)
		}
	}
	if rs := def.ResultTypes(); len(rs) != 1 || rs[0] != api.ValueTypeF64 {
		return nlexpr.Func{}, fmt.Errorf("function %q in Wasm module %v must return one float64",
			funcName, i.name)
	}

	return nlexpr.Func{
		Name:  name,
		Arity: arity,
		Eval: func(args []float64) float64 {
			params := make([]uint64, len(args))
			for k, a := range args {
				params[k] = api.EncodeF64(a)
			}
			res, err := f.Call(i.ctx, params...)
			if err != nil {
				return math.NaN()
			}
			return api.DecodeF64(res[0])
		},
	}, nil
}
