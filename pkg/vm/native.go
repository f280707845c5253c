package vm

import (
	"fmt"

	"github.com/daimatz/warzone-loader/pkg/native"
)

// MethodKey identifies a method by owner, name and descriptor.
type MethodKey struct {
	Owner string
	Name  string
	Desc  string
}

func (k MethodKey) String() string {
	return k.Owner + "." + k.Name + k.Desc
}

// NativeFunc implements a method in Go. For instance methods args[0] is the
// receiver. The result is ignored for void methods.
type NativeFunc func(args []Value) (Value, error)

// Natives binds methods to Go implementations. Bindings are consulted before
// any class is loaded, so a bound class never needs to exist on the class path.
type Natives map[MethodKey]NativeFunc

// lookupNative finds a binding for owner.name+desc, trying the superclasses
// of builtin owners so Throwable methods serve every exception class.
func (vm *VM) lookupNative(owner, name, desc string) NativeFunc {
	for o := owner; o != ""; {
		key := MethodKey{Owner: o, Name: name, Desc: desc}
		if fn, ok := vm.natives[key]; ok {
			return fn
		}
		if fn, ok := vm.builtins[key]; ok {
			return fn
		}
		if !isBuiltin(o) {
			return nil
		}
		o = builtinSuper(o)
	}
	return nil
}

func builtinNatives() Natives {
	table := Natives{}

	printer := func(name, desc string, render func(Value) any) {
		table[MethodKey{"java/io/PrintStream", name, desc}] = func(args []Value) (Value, error) {
			ps, err := receiver[*native.PrintStream](args)
			if err != nil {
				return Value{}, err
			}
			switch {
			case render == nil:
				ps.Println()
			case name == "println":
				ps.Println(render(args[1]))
			default:
				ps.Print(render(args[1]))
			}
			return Value{}, nil
		}
	}
	asInt := func(v Value) any { return v.Int }
	asBool := func(v Value) any { return v.Int != 0 }
	asRef := func(v Value) any {
		if v.IsNull() {
			return nil
		}
		if obj, ok := v.Ref.(*JObject); ok {
			return obj.ClassName
		}
		return v.Ref
	}
	printer("println", "()V", nil)
	printer("println", "(I)V", asInt)
	printer("println", "(Z)V", asBool)
	printer("println", "(Ljava/lang/String;)V", asRef)
	printer("println", "(Ljava/lang/Object;)V", asRef)
	printer("print", "(I)V", asInt)
	printer("print", "(Ljava/lang/String;)V", asRef)

	table[MethodKey{"java/lang/Object", "<init>", "()V"}] = func([]Value) (Value, error) {
		return Value{}, nil
	}

	table[MethodKey{"java/lang/Integer", "valueOf", "(I)Ljava/lang/Integer;"}] = func(args []Value) (Value, error) {
		return RefValue(native.IntegerValueOf(args[0].Int)), nil
	}
	table[MethodKey{"java/lang/Integer", "intValue", "()I"}] = func(args []Value) (Value, error) {
		ni, err := receiver[*native.NativeInteger](args)
		if err != nil {
			return Value{}, err
		}
		return IntValue(native.IntegerIntValue(ni)), nil
	}
	table[MethodKey{"java/lang/Integer", "parseInt", "(Ljava/lang/String;)I"}] = func(args []Value) (Value, error) {
		s, ok := args[0].Ref.(string)
		if args[0].IsNull() || !ok {
			return Value{}, NewJavaException("java/lang/NumberFormatException", "Cannot parse null string")
		}
		v, err := native.ParseInt(s)
		if err != nil {
			return Value{}, NewJavaException("java/lang/NumberFormatException", err.Error())
		}
		return IntValue(v), nil
	}

	table[MethodKey{"java/lang/String", "length", "()I"}] = func(args []Value) (Value, error) {
		s, err := receiver[string](args)
		if err != nil {
			return Value{}, err
		}
		return IntValue(int32(len([]rune(s)))), nil
	}
	table[MethodKey{"java/lang/String", "isEmpty", "()Z"}] = func(args []Value) (Value, error) {
		s, err := receiver[string](args)
		if err != nil {
			return Value{}, err
		}
		return boolValue(s == ""), nil
	}
	table[MethodKey{"java/lang/String", "equals", "(Ljava/lang/Object;)Z"}] = func(args []Value) (Value, error) {
		s, err := receiver[string](args)
		if err != nil {
			return Value{}, err
		}
		other, ok := args[1].Ref.(string)
		return boolValue(ok && s == other), nil
	}

	table[MethodKey{"java/lang/Throwable", "<init>", "()V"}] = func([]Value) (Value, error) {
		return Value{}, nil
	}
	table[MethodKey{"java/lang/Throwable", "<init>", "(Ljava/lang/String;)V"}] = func(args []Value) (Value, error) {
		obj, err := receiver[*JObject](args)
		if err != nil {
			return Value{}, err
		}
		obj.Fields[messageField] = args[1]
		return Value{}, nil
	}
	table[MethodKey{"java/lang/Throwable", "getMessage", "()Ljava/lang/String;"}] = func(args []Value) (Value, error) {
		obj, err := receiver[*JObject](args)
		if err != nil {
			return Value{}, err
		}
		if msg, ok := obj.Fields[messageField]; ok {
			return msg, nil
		}
		return NullValue(), nil
	}
	return table
}

// receiver extracts args[0] as T, raising NullPointerException for null.
func receiver[T any](args []Value) (T, error) {
	var zero T
	if len(args) == 0 || args[0].IsNull() {
		return zero, NewJavaException("java/lang/NullPointerException", "")
	}
	r, ok := args[0].Ref.(T)
	if !ok {
		return zero, fmt.Errorf("receiver is %T, want %T", args[0].Ref, zero)
	}
	return r, nil
}

func boolValue(b bool) Value {
	if b {
		return IntValue(1)
	}
	return IntValue(0)
}
