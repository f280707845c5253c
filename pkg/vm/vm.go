package vm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/daimatz/warzone-loader/pkg/bytecode"
	"github.com/daimatz/warzone-loader/pkg/classfile"
	"github.com/daimatz/warzone-loader/pkg/native"
	"go.uber.org/zap"
)

// maxFrameDepth is the maximum number of nested method calls.
const maxFrameDepth = 1024

// MainDescriptor is the descriptor of a Java entry point.
const MainDescriptor = "([Ljava/lang/String;)V"

// ErrMethodNotFound is returned (wrapped) when method resolution fails.
var ErrMethodNotFound = errors.New("method not found")

// Class is a loaded class with its static state.
type Class struct {
	Name string
	File *classfile.ClassFile

	statics     map[string]Value
	initialized bool
}

// FindMethod returns the method declared by the class itself.
func (c *Class) FindMethod(name, desc string) *classfile.MethodInfo {
	return c.File.FindMethod(name, desc)
}

// VM is the virtual machine that executes Java bytecode.
type VM struct {
	Stdout io.Writer
	Stderr io.Writer

	loader     ClassLoader
	natives    Natives
	builtins   Natives
	classes    map[string]*Class
	frameDepth int
}

// NewVM creates a VM loading classes through loader. natives take
// precedence over both the builtin JDK stand-ins and loaded classes.
func NewVM(loader ClassLoader, natives Natives) *VM {
	return &VM{
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		loader:   loader,
		natives:  natives,
		builtins: builtinNatives(),
		classes:  make(map[string]*Class),
	}
}

// LoadClass loads and links name. Both "a.b.C" and "a/b/C" are accepted.
// Static initialization is deferred until first use.
func (vm *VM) LoadClass(name string) (*Class, error) {
	name = strings.ReplaceAll(name, ".", "/")
	if cls, ok := vm.classes[name]; ok {
		return cls, nil
	}
	if vm.loader == nil {
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name)
	}
	cf, err := vm.loader.LoadClass(name)
	if err != nil {
		return nil, fmt.Errorf("loading class %s: %w", name, err)
	}
	cls := &Class{Name: name, File: cf, statics: make(map[string]Value)}
	for _, f := range cf.Fields {
		if f.AccessFlags&classfile.AccStatic != 0 {
			cls.statics[f.Name] = zeroValue(f.Descriptor)
		}
	}
	vm.classes[name] = cls
	Logger().Debug("class loaded", zap.String("class", name))
	return cls, nil
}

// Execute loads className and runs its main method with args.
func (vm *VM) Execute(className string, args []string) error {
	cls, err := vm.LoadClass(className)
	if err != nil {
		return err
	}
	method := cls.FindMethod("main", MainDescriptor)
	if method == nil {
		return fmt.Errorf("%w: %s.main%s", ErrMethodNotFound, cls.Name, MainDescriptor)
	}
	_, err = vm.Invoke(cls, method, RefValue(StringArray(args)))
	return err
}

// Invoke initializes cls if needed and runs method with args. Internal
// faults of the interpreter are returned as errors.
func (vm *VM) Invoke(cls *Class, method *classfile.MethodInfo, args ...Value) (ret Value, err error) {
	if vm.frameDepth == 0 {
		defer func() {
			if r := recover(); r != nil {
				vm.frameDepth = 0
				err = fmt.Errorf("vm: %s.%s%s: %v", cls.Name, method.Name, method.Descriptor, r)
			}
		}()
	}
	if err := vm.initialize(cls); err != nil {
		return Value{}, err
	}
	return vm.executeMethod(cls, method, args)
}

// StaticField returns the current value of a static field of a loaded class.
func (vm *VM) StaticField(className, name string) (Value, bool) {
	cls, ok := vm.classes[strings.ReplaceAll(className, ".", "/")]
	if !ok {
		return Value{}, false
	}
	v, ok := cls.statics[name]
	return v, ok
}

// initialize runs <clinit> once, after the superclass has been initialized.
func (vm *VM) initialize(cls *Class) error {
	if cls.initialized {
		return nil
	}
	cls.initialized = true

	if super := cls.File.SuperClassName(); super != "" && !isBuiltin(super) {
		superCls, err := vm.LoadClass(super)
		if err != nil {
			return err
		}
		if err := vm.initialize(superCls); err != nil {
			return err
		}
	}
	clinit := cls.FindMethod("<clinit>", "()V")
	if clinit == nil {
		return nil
	}
	_, err := vm.executeMethod(cls, clinit, nil)
	return err
}

// executeMethod executes a method with the given arguments and returns its return value.
func (vm *VM) executeMethod(cls *Class, method *classfile.MethodInfo, args []Value) (Value, error) {
	if method.Code == nil {
		return Value{}, fmt.Errorf("method %s.%s%s has no Code attribute", cls.Name, method.Name, method.Descriptor)
	}

	vm.frameDepth++
	defer func() { vm.frameDepth-- }()
	if vm.frameDepth > maxFrameDepth {
		return Value{}, NewJavaException("java/lang/StackOverflowError", fmt.Sprintf("frame depth exceeded %d", maxFrameDepth))
	}

	frame := NewFrame(method.Code.MaxLocals, method.Code.MaxStack, method.Code.Code, cls)
	for i, arg := range args {
		frame.SetLocal(i, arg)
	}

	for frame.PC < len(frame.Code) {
		start := frame.PC
		opcode := frame.Code[frame.PC]
		frame.PC++

		retVal, hasReturn, err := vm.executeInstruction(frame, opcode)
		if err != nil {
			var jex *JavaException
			if errors.As(err, &jex) {
				if handler, ok := vm.findHandler(cls, method.Code.ExceptionHandlers, start, jex); ok {
					frame.SP = 0
					frame.Push(RefValue(jex.Object))
					frame.PC = handler
					continue
				}
			}
			return Value{}, err
		}
		if hasReturn {
			return retVal, nil
		}
	}

	// Fell off the end of the method (implicit return for void methods)
	return Value{}, nil
}

// findHandler returns the handler pc covering pc for the thrown exception.
func (vm *VM) findHandler(cls *Class, handlers []classfile.ExceptionHandler, pc int, jex *JavaException) (int, bool) {
	for _, h := range handlers {
		if pc < int(h.StartPC) || pc >= int(h.EndPC) {
			continue
		}
		if h.CatchType == 0 {
			return int(h.HandlerPC), true
		}
		catchName, err := classfile.GetClassName(cls.File.ConstantPool, h.CatchType)
		if err != nil {
			continue
		}
		if vm.isInstanceOf(jex.Object.ClassName, catchName) {
			return int(h.HandlerPC), true
		}
	}
	return 0, false
}

// resolveMethod walks the superclass chain of className looking for
// name+desc. When the chain reaches a builtin class, that class is returned
// as owner so natives bound to it can serve the call.
func (vm *VM) resolveMethod(className, name, desc string) (*Class, *classfile.MethodInfo, string, error) {
	for c := className; c != ""; {
		if isBuiltin(c) {
			return nil, nil, c, nil
		}
		cls, err := vm.LoadClass(c)
		if err != nil {
			return nil, nil, "", err
		}
		if m := cls.FindMethod(name, desc); m != nil {
			return cls, m, "", nil
		}
		c = cls.File.SuperClassName()
	}
	return nil, nil, "", nil
}

// call runs a resolved invocation. Non-virtual calls try natives before
// bytecode; virtual calls on loaded classes resolve bytecode first so
// overrides win, falling back to natives of the first builtin superclass.
func (vm *VM) call(frame *Frame, ref *classfile.MemberRef, lookupClass string, virtual bool, args []Value) error {
	var (
		fn    NativeFunc
		cls   *Class
		m     *classfile.MethodInfo
		owner string
		err   error
	)
	if !virtual {
		fn = vm.lookupNative(ref.ClassName, ref.Name, ref.Descriptor)
	}
	if fn == nil {
		cls, m, owner, err = vm.resolveMethod(lookupClass, ref.Name, ref.Descriptor)
		if err != nil {
			return err
		}
		if m == nil && owner != "" {
			fn = vm.lookupNative(owner, ref.Name, ref.Descriptor)
		}
	}

	var ret Value
	switch {
	case fn != nil:
		ret, err = fn(args)
	case m != nil:
		if err := vm.initialize(cls); err != nil {
			return err
		}
		ret, err = vm.executeMethod(cls, m, args)
	default:
		return fmt.Errorf("%w: %s", ErrMethodNotFound, ref)
	}
	if err != nil {
		return err
	}
	if !isVoidReturn(ref.Descriptor) {
		frame.Push(ret)
	}
	return nil
}

// executeLdc handles the ldc instruction.
func (vm *VM) executeLdc(frame *Frame, index uint16) (Value, bool, error) {
	pool := frame.Class.File.ConstantPool
	if int(index) >= len(pool) || pool[index] == nil {
		return Value{}, false, fmt.Errorf("ldc: invalid constant pool index %d", index)
	}

	entry := pool[index]
	switch c := entry.(type) {
	case *classfile.ConstantInteger:
		frame.Push(IntValue(c.Value))
	case *classfile.ConstantString:
		str, err := classfile.GetUtf8(pool, c.StringIndex)
		if err != nil {
			return Value{}, false, fmt.Errorf("ldc: resolving string: %w", err)
		}
		frame.Push(RefValue(str))
	default:
		return Value{}, false, fmt.Errorf("ldc: unsupported constant pool entry type at index %d (tag=%d)", index, entry.Tag())
	}

	return Value{}, false, nil
}

// staticOwner returns the class declaring the static field name, starting
// the search at className.
func (vm *VM) staticOwner(className, name string) (*Class, error) {
	for c := className; c != "" && !isBuiltin(c); {
		cls, err := vm.LoadClass(c)
		if err != nil {
			return nil, err
		}
		if _, ok := cls.statics[name]; ok {
			return cls, vm.initialize(cls)
		}
		c = cls.File.SuperClassName()
	}
	return nil, fmt.Errorf("static field %s.%s not found", className, name)
}

// executeGetstatic handles the getstatic instruction.
func (vm *VM) executeGetstatic(frame *Frame) (Value, bool, error) {
	index := frame.ReadU16()

	fieldRef, err := classfile.ResolveFieldref(frame.Class.File.ConstantPool, index)
	if err != nil {
		return Value{}, false, fmt.Errorf("getstatic: %w", err)
	}

	if fieldRef.ClassName == "java/lang/System" {
		switch fieldRef.Name {
		case "out":
			frame.Push(RefValue(&native.PrintStream{Writer: vm.Stdout}))
			return Value{}, false, nil
		case "err":
			frame.Push(RefValue(&native.PrintStream{Writer: vm.Stderr}))
			return Value{}, false, nil
		}
	}
	if isBuiltin(fieldRef.ClassName) {
		return Value{}, false, fmt.Errorf("getstatic: unsupported field %s", fieldRef)
	}

	cls, err := vm.staticOwner(fieldRef.ClassName, fieldRef.Name)
	if err != nil {
		return Value{}, false, fmt.Errorf("getstatic: %w", err)
	}
	frame.Push(cls.statics[fieldRef.Name])
	return Value{}, false, nil
}

// executePutstatic handles the putstatic instruction.
func (vm *VM) executePutstatic(frame *Frame) (Value, bool, error) {
	index := frame.ReadU16()

	fieldRef, err := classfile.ResolveFieldref(frame.Class.File.ConstantPool, index)
	if err != nil {
		return Value{}, false, fmt.Errorf("putstatic: %w", err)
	}
	value := frame.Pop()

	cls, err := vm.staticOwner(fieldRef.ClassName, fieldRef.Name)
	if err != nil {
		return Value{}, false, fmt.Errorf("putstatic: %w", err)
	}
	cls.statics[fieldRef.Name] = value
	return Value{}, false, nil
}

// executeGetfield handles the getfield instruction.
func (vm *VM) executeGetfield(frame *Frame) (Value, bool, error) {
	index := frame.ReadU16()

	fieldRef, err := classfile.ResolveFieldref(frame.Class.File.ConstantPool, index)
	if err != nil {
		return Value{}, false, fmt.Errorf("getfield: %w", err)
	}

	objectRef := frame.Pop()
	if objectRef.IsNull() {
		return Value{}, false, NewJavaException("java/lang/NullPointerException", "")
	}
	obj, ok := objectRef.Ref.(*JObject)
	if !ok {
		return Value{}, false, fmt.Errorf("getfield: receiver is not a JObject")
	}

	val, exists := obj.Fields[fieldRef.Name]
	if !exists {
		val = zeroValue(fieldRef.Descriptor)
	}
	frame.Push(val)
	return Value{}, false, nil
}

// executePutfield handles the putfield instruction.
func (vm *VM) executePutfield(frame *Frame) (Value, bool, error) {
	index := frame.ReadU16()

	fieldRef, err := classfile.ResolveFieldref(frame.Class.File.ConstantPool, index)
	if err != nil {
		return Value{}, false, fmt.Errorf("putfield: %w", err)
	}

	value := frame.Pop()
	objectRef := frame.Pop()
	if objectRef.IsNull() {
		return Value{}, false, NewJavaException("java/lang/NullPointerException", "")
	}
	obj, ok := objectRef.Ref.(*JObject)
	if !ok {
		return Value{}, false, fmt.Errorf("putfield: receiver is not a JObject")
	}

	obj.Fields[fieldRef.Name] = value
	return Value{}, false, nil
}

// executeInvoke handles invokevirtual, invokespecial, invokestatic and
// invokeinterface.
func (vm *VM) executeInvoke(frame *Frame, opcode byte) (Value, bool, error) {
	index := frame.ReadU16()
	if opcode == bytecode.OpInvokeinterface {
		frame.PC += 2 // count, 0
	}
	name := bytecode.Mnemonic(opcode)

	methodRef, err := classfile.ResolveAnyMethodref(frame.Class.File.ConstantPool, index)
	if err != nil {
		return Value{}, false, fmt.Errorf("%s: %w", name, err)
	}

	paramCount, err := countParams(methodRef.Descriptor)
	if err != nil {
		return Value{}, false, fmt.Errorf("%s: %w", name, err)
	}
	hasReceiver := opcode != bytecode.OpInvokestatic
	if hasReceiver {
		paramCount++
	}
	args := make([]Value, paramCount)
	for i := paramCount - 1; i >= 0; i-- {
		args[i] = frame.Pop()
	}

	lookup := methodRef.ClassName
	virtual := false
	if hasReceiver {
		if args[0].IsNull() {
			return Value{}, false, NewJavaException("java/lang/NullPointerException",
				fmt.Sprintf("Cannot invoke \"%s.%s()\" because value is null", methodRef.ClassName, methodRef.Name))
		}
		// Dispatch on the runtime class of the receiver.
		if obj, ok := args[0].Ref.(*JObject); ok && opcode != bytecode.OpInvokespecial && !isBuiltin(obj.ClassName) {
			lookup = obj.ClassName
			virtual = true
		}
	}

	if err := vm.call(frame, methodRef, lookup, virtual, args); err != nil {
		return Value{}, false, err
	}
	return Value{}, false, nil
}

// executeNew handles the new instruction.
func (vm *VM) executeNew(frame *Frame) (Value, bool, error) {
	index := frame.ReadU16()

	className, err := classfile.GetClassName(frame.Class.File.ConstantPool, index)
	if err != nil {
		return Value{}, false, fmt.Errorf("new: %w", err)
	}

	if !isBuiltin(className) {
		cls, err := vm.LoadClass(className)
		if err != nil {
			return Value{}, false, fmt.Errorf("new: %w", err)
		}
		if err := vm.initialize(cls); err != nil {
			return Value{}, false, err
		}
	}
	frame.Push(RefValue(NewObject(className)))
	return Value{}, false, nil
}

// superOf returns the superclass name of className, or "" at the root.
func (vm *VM) superOf(className string) string {
	if isBuiltin(className) {
		return builtinSuper(className)
	}
	cls, err := vm.LoadClass(className)
	if err != nil {
		return ""
	}
	return cls.File.SuperClassName()
}

// isInstanceOf reports whether className is target or a subtype of it.
// Interfaces are matched one level deep.
func (vm *VM) isInstanceOf(className, target string) bool {
	if target == "java/lang/Object" {
		return true
	}
	for c := className; c != ""; c = vm.superOf(c) {
		if c == target {
			return true
		}
		if isBuiltin(c) {
			continue
		}
		cls, err := vm.LoadClass(c)
		if err != nil {
			return false
		}
		for _, idx := range cls.File.Interfaces {
			if name, err := classfile.GetClassName(cls.File.ConstantPool, idx); err == nil && name == target {
				return true
			}
		}
	}
	return false
}

// refClassName returns the class name of a non-null reference.
func refClassName(v Value) string {
	switch r := v.Ref.(type) {
	case *JObject:
		return r.ClassName
	case string:
		return "java/lang/String"
	case *native.NativeInteger:
		return "java/lang/Integer"
	case *native.PrintStream:
		return "java/io/PrintStream"
	}
	return ""
}

// zeroValue returns the default value for a field descriptor.
func zeroValue(desc string) Value {
	switch desc {
	case "I", "Z", "B", "C", "S":
		return IntValue(0)
	}
	return NullValue()
}

// countParams counts the number of parameters in a method descriptor.
func countParams(descriptor string) (int, error) {
	start := strings.Index(descriptor, "(")
	end := strings.Index(descriptor, ")")
	if start == -1 || end == -1 {
		return 0, fmt.Errorf("invalid method descriptor: %s", descriptor)
	}

	params := descriptor[start+1 : end]
	count := 0
	i := 0
	for i < len(params) {
		switch params[i] {
		case 'B', 'C', 'I', 'S', 'Z':
			count++
			i++
		case 'D', 'F', 'J':
			return 0, fmt.Errorf("unsupported parameter type '%c' in %s", params[i], descriptor)
		case 'L':
			count++
			for i < len(params) && params[i] != ';' {
				i++
			}
			i++ // skip ';'
		case '[':
			for i < len(params) && params[i] == '[' {
				i++
			}
			if i < len(params) && params[i] == 'L' {
				for i < len(params) && params[i] != ';' {
					i++
				}
			}
			i++
			count++
		default:
			return 0, fmt.Errorf("invalid type descriptor char '%c' in %s", params[i], descriptor)
		}
	}
	return count, nil
}

// isVoidReturn checks if a method descriptor has void return type.
func isVoidReturn(descriptor string) bool {
	return strings.HasSuffix(descriptor, ")V")
}
