package urlcheck

import (
	"github.com/robertkrimen/otto"
)

type ottoMatcher struct {
	vm *otto.Otto
}

func newOttoMatcher(src, flags string) (*ottoMatcher, error) {
	vm := otto.New()
	if err := vm.Set("__src", src); err != nil {
		return nil, err
	}
	if err := vm.Set("__flags", flags); err != nil {
		return nil, err
	}
	if _, err := vm.Run(helpers); err != nil {
		return nil, err
	}
	return &ottoMatcher{vm: vm}, nil
}

func (o *ottoMatcher) match(s string) (bool, error) {
	v, err := o.vm.Call("__match", nil, s)
	if err != nil {
		return false, err
	}
	return v.ToBoolean()
}

func (o *ottoMatcher) extract(s string) (string, bool, error) {
	v, err := o.vm.Call("__extract", nil, s)
	if err != nil {
		return "", false, err
	}
	if v.IsNull() || v.IsUndefined() {
		return "", false, nil
	}
	return v.String(), true, nil
}
