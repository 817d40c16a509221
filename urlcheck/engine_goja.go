package urlcheck

import (
	"errors"

	"github.com/dop251/goja"
)

type gojaMatcher struct {
	vm        *goja.Runtime
	matchFn   goja.Callable
	extractFn goja.Callable
}

func newGojaMatcher(src, flags string) (*gojaMatcher, error) {
	vm := goja.New()
	_ = vm.Set("__src", src)
	_ = vm.Set("__flags", flags)
	if _, err := vm.RunString(helpers); err != nil {
		return nil, err
	}
	m, ok := goja.AssertFunction(vm.Get("__match"))
	if !ok {
		return nil, errors.New("__match not defined")
	}
	x, ok := goja.AssertFunction(vm.Get("__extract"))
	if !ok {
		return nil, errors.New("__extract not defined")
	}
	return &gojaMatcher{vm: vm, matchFn: m, extractFn: x}, nil
}

func (g *gojaMatcher) match(s string) (bool, error) {
	res, err := g.matchFn(goja.Undefined(), g.vm.ToValue(s))
	if err != nil {
		return false, err
	}
	return res.ToBoolean(), nil
}

func (g *gojaMatcher) extract(s string) (string, bool, error) {
	res, err := g.extractFn(goja.Undefined(), g.vm.ToValue(s))
	if err != nil {
		return "", false, err
	}
	if goja.IsNull(res) || goja.IsUndefined(res) {
		return "", false, nil
	}
	return res.String(), true, nil
}
