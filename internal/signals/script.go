package signals

import (
	"sync"

	"github.com/dop251/goja"

	"github.com/straddle-io/straddle/errs"
	"github.com/straddle-io/straddle/internal/observability"
)

// ScriptGate evaluates a user-supplied JavaScript expression per signal. The
// script sees asset, bp and level bindings and its result is coerced to a
// boolean. Compile failures are fatal at construction; runtime failures drop
// the signal with a warning.
type ScriptGate struct {
	mu   sync.Mutex
	vm   *goja.Runtime
	prog *goja.Program
}

// NewScriptGate compiles the gate expression.
func NewScriptGate(src string) (*ScriptGate, error) {
	prog, err := goja.Compile("signal_gate", src, true)
	if err != nil {
		return nil, errs.New("signals", errs.CodeInvalid,
			errs.WithCause(err),
			errs.WithMessage("compile signal gate script"))
	}
	return &ScriptGate{vm: goja.New(), prog: prog}, nil
}

func (g *ScriptGate) Allow(sig Signal) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.vm.Set("asset", string(sig.Asset)); err != nil {
		return g.dropOnError(sig, err)
	}
	if err := g.vm.Set("bp", sig.Bp); err != nil {
		return g.dropOnError(sig, err)
	}
	if err := g.vm.Set("level", sig.Level.String()); err != nil {
		return g.dropOnError(sig, err)
	}
	value, err := g.vm.RunProgram(g.prog)
	if err != nil {
		return g.dropOnError(sig, err)
	}
	return value.ToBoolean()
}

func (g *ScriptGate) dropOnError(sig Signal, err error) bool {
	observability.Log().Warn("signal gate script failed, dropping signal",
		observability.F("asset", string(sig.Asset)),
		observability.F("error", err.Error()))
	return false
}
