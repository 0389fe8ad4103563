package ws

import (
	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
	lru "github.com/hashicorp/golang-lru"
	"github.com/tcriess/lightspeed-meet/filter"
	"github.com/tcriess/lightspeed-meet/globals"
)

// compiled filter programs are cached, subscribers tend to reuse the same
// few expressions
var filterCache, _ = lru.New(128)

// CompileFilter compiles a subscriber filter expression against the fixed
// filter environment.
func CompileFilter(filterExpr string) (*vm.Program, error) {
	if prog, ok := filterCache.Get(filterExpr); ok {
		return prog.(*vm.Program), nil
	}
	prog, err := expr.Compile(filterExpr, expr.Env(filter.Env{}))
	if err != nil {
		return nil, err
	}
	filterCache.Add(filterExpr, prog)
	return prog, nil
}

// RunFilter evaluates a compiled filter, a runtime error or a non-boolean
// result rejects the event.
func RunFilter(prog *vm.Program, env filter.Env) bool {
	res, err := expr.Run(prog, env)
	if err != nil {
		globals.AppLogger.Debug("could not run filter", "error", err)
		return false
	}
	ok, isBool := res.(bool)
	return isBool && ok
}
