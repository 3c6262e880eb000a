package vm

import (
	"math/rand"
	"time"

	"github.com/mtkrol/loxvm/lang/intern"
)

// registerNatives installs the native function bindings every Thread starts
// with: clock, random, and the hasfield/setfield/deletefield trio used to
// manipulate instance fields dynamically, bypassing the usual dotted-name
// mangling rules.
func registerNatives(th *Thread) {
	def := func(name string, arity int, fn func(th *Thread, args []Value) (Value, error)) {
		th.DefineGlobal(name, &NativeFunction{NameStr: name, Arity: arity, Fn: fn})
	}

	def("clock", 0, func(th *Thread, args []Value) (Value, error) {
		return Number(float64(time.Now().UnixNano()) / 1e9), nil
	})

	def("random", 2, func(th *Thread, args []Value) (Value, error) {
		lo, ok := args[0].(Number)
		if !ok {
			return nil, th.runtimeError("argument 1 must be a number")
		}
		hi, ok := args[1].(Number)
		if !ok {
			return nil, th.runtimeError("argument 2 must be a number")
		}
		if !(lo < hi) {
			return nil, th.runtimeError("random: lo must be less than hi")
		}
		span := int(hi) - int(lo)
		return Number(float64(int(lo) + rand.Intn(span))), nil
	})

	def("hasfield", 2, func(th *Thread, args []Value) (Value, error) {
		inst, name, err := fieldArgs(th, args)
		if err != nil {
			return nil, err
		}
		_, ok := inst.Fields[name]
		return Bool(ok), nil
	})

	def("setfield", 3, func(th *Thread, args []Value) (Value, error) {
		inst, name, err := fieldArgs(th, args)
		if err != nil {
			return nil, err
		}
		inst.Fields[name] = args[2]
		return Nil, nil
	})

	def("deletefield", 2, func(th *Thread, args []Value) (Value, error) {
		inst, name, err := fieldArgs(th, args)
		if err != nil {
			return nil, err
		}
		delete(inst.Fields, name)
		return Nil, nil
	})
}

// fieldArgs validates the (instance, name) prefix shared by hasfield,
// setfield, and deletefield.
func fieldArgs(th *Thread, args []Value) (*Instance, string, error) {
	inst, ok := args[0].(*Instance)
	if !ok {
		return nil, "", th.runtimeError("argument 1 must be an instance")
	}
	name, ok := args[1].(*intern.String)
	if !ok {
		return nil, "", th.runtimeError("argument 2 must be a string")
	}
	return inst, name.Go(), nil
}
