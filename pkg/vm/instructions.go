package vm

import (
	"fmt"

	"github.com/daimatz/warzone-loader/pkg/bytecode"
	"github.com/daimatz/warzone-loader/pkg/classfile"
)

// executeInstruction executes a single bytecode instruction.
// Returns (returnValue, hasReturn, error).
func (vm *VM) executeInstruction(frame *Frame, opcode byte) (Value, bool, error) {
	switch opcode {
	case bytecode.OpNop:
		// do nothing

	// --- Constant load instructions ---
	case bytecode.OpAconstNull:
		frame.Push(NullValue())

	case bytecode.OpIconstM1, bytecode.OpIconst0, bytecode.OpIconst1, bytecode.OpIconst2,
		bytecode.OpIconst3, bytecode.OpIconst4, bytecode.OpIconst5:
		frame.Push(IntValue(int32(opcode) - bytecode.OpIconst0))

	case bytecode.OpBipush:
		val := frame.ReadI8()
		frame.Push(IntValue(int32(val)))

	case bytecode.OpSipush:
		val := frame.ReadI16()
		frame.Push(IntValue(int32(val)))

	case bytecode.OpLdc:
		index := frame.ReadU8()
		return vm.executeLdc(frame, uint16(index))

	case bytecode.OpLdcW:
		index := frame.ReadU16()
		return vm.executeLdc(frame, index)

	// --- Local variable load instructions ---
	case bytecode.OpIload, bytecode.OpAload:
		index := frame.ReadU8()
		frame.Push(frame.GetLocal(int(index)))
	case bytecode.OpIload0, bytecode.OpIload1, bytecode.OpIload2, bytecode.OpIload3:
		frame.Push(frame.GetLocal(int(opcode - bytecode.OpIload0)))
	case bytecode.OpAload0, bytecode.OpAload1, bytecode.OpAload2, bytecode.OpAload3:
		frame.Push(frame.GetLocal(int(opcode - bytecode.OpAload0)))

	// --- Array load ---
	case bytecode.OpIaload, bytecode.OpBaload, bytecode.OpCaload, bytecode.OpAaload:
		index := frame.Pop().Int
		arr, err := arrayRef(frame.Pop(), index)
		if err != nil {
			return Value{}, false, err
		}
		frame.Push(arr.Elements[index])

	// --- Local variable store instructions ---
	case bytecode.OpIstore, bytecode.OpAstore:
		index := frame.ReadU8()
		frame.SetLocal(int(index), frame.Pop())
	case bytecode.OpIstore0, bytecode.OpIstore1, bytecode.OpIstore2, bytecode.OpIstore3:
		frame.SetLocal(int(opcode-bytecode.OpIstore0), frame.Pop())
	case bytecode.OpAstore0, bytecode.OpAstore1, bytecode.OpAstore2, bytecode.OpAstore3:
		frame.SetLocal(int(opcode-bytecode.OpAstore0), frame.Pop())

	// --- Array store ---
	case bytecode.OpIastore, bytecode.OpBastore, bytecode.OpCastore, bytecode.OpAastore:
		value := frame.Pop()
		index := frame.Pop().Int
		arr, err := arrayRef(frame.Pop(), index)
		if err != nil {
			return Value{}, false, err
		}
		switch opcode {
		case bytecode.OpBastore:
			value = IntValue(int32(int8(value.Int)))
		case bytecode.OpCastore:
			value = IntValue(int32(uint16(value.Int)))
		}
		arr.Elements[index] = value

	// --- Stack manipulation ---
	case bytecode.OpPop:
		frame.Pop()

	case bytecode.OpPop2:
		frame.Pop()
		frame.Pop()

	case bytecode.OpDup:
		v := frame.Peek()
		frame.Push(v)

	case bytecode.OpDupX1:
		v1 := frame.Pop()
		v2 := frame.Pop()
		frame.Push(v1)
		frame.Push(v2)
		frame.Push(v1)

	case bytecode.OpDupX2:
		v1 := frame.Pop()
		v2 := frame.Pop()
		v3 := frame.Pop()
		frame.Push(v1)
		frame.Push(v3)
		frame.Push(v2)
		frame.Push(v1)

	case bytecode.OpSwap:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(v2)
		frame.Push(v1)

	// --- Arithmetic ---
	case bytecode.OpIadd:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(IntValue(v1.Int + v2.Int))

	case bytecode.OpIsub:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(IntValue(v1.Int - v2.Int))

	case bytecode.OpImul:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(IntValue(v1.Int * v2.Int))

	case bytecode.OpIdiv:
		v2, v1 := frame.Pop(), frame.Pop()
		if v2.Int == 0 {
			return Value{}, false, NewJavaException("java/lang/ArithmeticException", "/ by zero")
		}
		frame.Push(IntValue(v1.Int / v2.Int))

	case bytecode.OpIrem:
		v2, v1 := frame.Pop(), frame.Pop()
		if v2.Int == 0 {
			return Value{}, false, NewJavaException("java/lang/ArithmeticException", "/ by zero")
		}
		frame.Push(IntValue(v1.Int % v2.Int))

	case bytecode.OpIneg:
		v := frame.Pop()
		frame.Push(IntValue(-v.Int))

	// --- Bit operations ---
	case bytecode.OpIshl:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(IntValue(v1.Int << (uint(v2.Int) & 0x1f)))

	case bytecode.OpIshr:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(IntValue(v1.Int >> (uint(v2.Int) & 0x1f)))

	case bytecode.OpIushr:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(IntValue(int32(uint32(v1.Int) >> (uint(v2.Int) & 0x1f))))

	case bytecode.OpIand:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(IntValue(v1.Int & v2.Int))

	case bytecode.OpIor:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(IntValue(v1.Int | v2.Int))

	case bytecode.OpIxor:
		v2, v1 := frame.Pop(), frame.Pop()
		frame.Push(IntValue(v1.Int ^ v2.Int))

	case bytecode.OpIinc:
		index := frame.ReadU8()
		constVal := frame.ReadI8()
		local := frame.GetLocal(int(index))
		frame.SetLocal(int(index), IntValue(local.Int+int32(constVal)))

	case bytecode.OpWide:
		return vm.executeWide(frame)

	// --- Type conversions ---
	case bytecode.OpI2b:
		v := frame.Pop()
		frame.Push(IntValue(int32(int8(v.Int))))

	case bytecode.OpI2c:
		v := frame.Pop()
		frame.Push(IntValue(int32(uint16(v.Int))))

	case bytecode.OpI2s:
		v := frame.Pop()
		frame.Push(IntValue(int32(int16(v.Int))))

	// --- Comparison and branch ---
	case bytecode.OpIfeq:
		return vm.executeBranchUnary(frame, func(v int32) bool { return v == 0 })
	case bytecode.OpIfne:
		return vm.executeBranchUnary(frame, func(v int32) bool { return v != 0 })
	case bytecode.OpIflt:
		return vm.executeBranchUnary(frame, func(v int32) bool { return v < 0 })
	case bytecode.OpIfge:
		return vm.executeBranchUnary(frame, func(v int32) bool { return v >= 0 })
	case bytecode.OpIfgt:
		return vm.executeBranchUnary(frame, func(v int32) bool { return v > 0 })
	case bytecode.OpIfle:
		return vm.executeBranchUnary(frame, func(v int32) bool { return v <= 0 })

	case bytecode.OpIfIcmpeq:
		return vm.executeBranchBinary(frame, func(v1, v2 int32) bool { return v1 == v2 })
	case bytecode.OpIfIcmpne:
		return vm.executeBranchBinary(frame, func(v1, v2 int32) bool { return v1 != v2 })
	case bytecode.OpIfIcmplt:
		return vm.executeBranchBinary(frame, func(v1, v2 int32) bool { return v1 < v2 })
	case bytecode.OpIfIcmpge:
		return vm.executeBranchBinary(frame, func(v1, v2 int32) bool { return v1 >= v2 })
	case bytecode.OpIfIcmpgt:
		return vm.executeBranchBinary(frame, func(v1, v2 int32) bool { return v1 > v2 })
	case bytecode.OpIfIcmple:
		return vm.executeBranchBinary(frame, func(v1, v2 int32) bool { return v1 <= v2 })

	case bytecode.OpIfAcmpeq, bytecode.OpIfAcmpne:
		branchPC := frame.PC - 1
		offset := frame.ReadI16()
		v2 := frame.Pop()
		v1 := frame.Pop()
		eq := sameRef(v1, v2)
		if eq == (opcode == bytecode.OpIfAcmpeq) {
			frame.PC = branchPC + int(offset)
		}

	case bytecode.OpIfnull, bytecode.OpIfnonnull:
		branchPC := frame.PC - 1
		offset := frame.ReadI16()
		isNull := frame.Pop().IsNull()
		if isNull == (opcode == bytecode.OpIfnull) {
			frame.PC = branchPC + int(offset)
		}

	case bytecode.OpGoto:
		branchPC := frame.PC - 1
		offset := frame.ReadI16()
		frame.PC = branchPC + int(offset)

	case bytecode.OpGotoW:
		branchPC := frame.PC - 1
		offset := frame.ReadI32()
		frame.PC = branchPC + int(offset)

	case bytecode.OpTableswitch:
		opcodePC := frame.PC - 1
		for frame.PC%4 != 0 {
			frame.PC++
		}
		defaultOffset := frame.ReadI32()
		low := frame.ReadI32()
		high := frame.ReadI32()
		numOffsets := int(high - low + 1)
		offsets := make([]int32, numOffsets)
		for i := 0; i < numOffsets; i++ {
			offsets[i] = frame.ReadI32()
		}
		index := frame.Pop().Int
		if index >= low && index <= high {
			frame.PC = opcodePC + int(offsets[index-low])
		} else {
			frame.PC = opcodePC + int(defaultOffset)
		}

	case bytecode.OpLookupswitch:
		opcodePC := frame.PC - 1
		for frame.PC%4 != 0 {
			frame.PC++
		}
		defaultOffset := frame.ReadI32()
		npairs := frame.ReadI32()
		key := frame.Pop().Int
		target := opcodePC + int(defaultOffset)
		for i := int32(0); i < npairs; i++ {
			matchVal := frame.ReadI32()
			offset := frame.ReadI32()
			if key == matchVal {
				target = opcodePC + int(offset)
				break
			}
		}
		frame.PC = target

	// --- Return ---
	case bytecode.OpIreturn, bytecode.OpAreturn:
		return frame.Pop(), true, nil

	case bytecode.OpReturn:
		return Value{}, true, nil

	// --- Method invocation and field access ---
	case bytecode.OpGetstatic:
		return vm.executeGetstatic(frame)

	case bytecode.OpPutstatic:
		return vm.executePutstatic(frame)

	case bytecode.OpGetfield:
		return vm.executeGetfield(frame)

	case bytecode.OpPutfield:
		return vm.executePutfield(frame)

	case bytecode.OpInvokevirtual, bytecode.OpInvokespecial, bytecode.OpInvokestatic, bytecode.OpInvokeinterface:
		return vm.executeInvoke(frame, opcode)

	case bytecode.OpNew:
		return vm.executeNew(frame)

	case bytecode.OpNewarray, bytecode.OpAnewarray:
		fill := NullValue()
		if opcode == bytecode.OpNewarray {
			frame.ReadU8() // atype
			fill = IntValue(0)
		} else {
			frame.ReadU16() // element class
		}
		count := frame.Pop().Int
		if count < 0 {
			return Value{}, false, NewJavaException("java/lang/NegativeArraySizeException", fmt.Sprint(count))
		}
		elements := make([]Value, count)
		for i := range elements {
			elements[i] = fill
		}
		frame.Push(RefValue(&JArray{Elements: elements}))

	case bytecode.OpArraylength:
		arrRef := frame.Pop()
		if arrRef.IsNull() {
			return Value{}, false, NewJavaException("java/lang/NullPointerException", "")
		}
		arr, ok := arrRef.Ref.(*JArray)
		if !ok {
			return Value{}, false, fmt.Errorf("arraylength: reference is not an array")
		}
		frame.Push(IntValue(int32(len(arr.Elements))))

	case bytecode.OpAthrow:
		excRef := frame.Pop()
		if excRef.IsNull() {
			return Value{}, false, NewJavaException("java/lang/NullPointerException", "")
		}
		obj, ok := excRef.Ref.(*JObject)
		if !ok {
			return Value{}, false, fmt.Errorf("athrow: non-object on stack")
		}
		msg, _ := obj.Fields[messageField].Ref.(string)
		return Value{}, false, &JavaException{Object: obj, Message: msg}

	case bytecode.OpCheckcast:
		className, err := classfile.GetClassName(frame.Class.File.ConstantPool, frame.ReadU16())
		if err != nil {
			return Value{}, false, fmt.Errorf("checkcast: %w", err)
		}
		val := frame.Peek()
		if !val.IsNull() {
			if rc := refClassName(val); rc != "" && !vm.isInstanceOf(rc, className) {
				return Value{}, false, NewJavaException("java/lang/ClassCastException",
					fmt.Sprintf("class %s cannot be cast to class %s", rc, className))
			}
		}

	case bytecode.OpInstanceof:
		className, err := classfile.GetClassName(frame.Class.File.ConstantPool, frame.ReadU16())
		if err != nil {
			return Value{}, false, fmt.Errorf("instanceof: %w", err)
		}
		ref := frame.Pop()
		rc := ""
		if !ref.IsNull() {
			rc = refClassName(ref)
		}
		frame.Push(boolValue(rc != "" && vm.isInstanceOf(rc, className)))

	case bytecode.OpMonitorenter, bytecode.OpMonitorexit:
		// single-threaded interpreter
		if frame.Pop().IsNull() {
			return Value{}, false, NewJavaException("java/lang/NullPointerException", "")
		}

	default:
		return Value{}, false, fmt.Errorf("unsupported opcode %s (0x%02X) at PC=%d", bytecode.Mnemonic(opcode), opcode, frame.PC-1)
	}

	return Value{}, false, nil
}

// executeWide handles the wide prefix for local loads, stores and iinc.
func (vm *VM) executeWide(frame *Frame) (Value, bool, error) {
	opcode := frame.ReadU8()
	index := int(frame.ReadU16())
	switch opcode {
	case bytecode.OpIload, bytecode.OpAload:
		frame.Push(frame.GetLocal(index))
	case bytecode.OpIstore, bytecode.OpAstore:
		frame.SetLocal(index, frame.Pop())
	case bytecode.OpIinc:
		constVal := frame.ReadI16()
		frame.SetLocal(index, IntValue(frame.GetLocal(index).Int+int32(constVal)))
	default:
		return Value{}, false, fmt.Errorf("wide: unsupported opcode %s", bytecode.Mnemonic(opcode))
	}
	return Value{}, false, nil
}

// executeBranchUnary handles unary branch instructions (ifeq, ifne, etc.)
func (vm *VM) executeBranchUnary(frame *Frame, cond func(int32) bool) (Value, bool, error) {
	branchPC := frame.PC - 1 // PC of the branch instruction
	offset := frame.ReadI16()
	val := frame.Pop()
	if cond(val.Int) {
		frame.PC = branchPC + int(offset)
	}
	return Value{}, false, nil
}

// executeBranchBinary handles binary branch instructions (if_icmpeq, etc.)
func (vm *VM) executeBranchBinary(frame *Frame, cond func(int32, int32) bool) (Value, bool, error) {
	branchPC := frame.PC - 1 // PC of the branch instruction
	offset := frame.ReadI16()
	v2 := frame.Pop()
	v1 := frame.Pop()
	if cond(v1.Int, v2.Int) {
		frame.PC = branchPC + int(offset)
	}
	return Value{}, false, nil
}

// arrayRef checks ref is a non-null array and index is in range.
func arrayRef(ref Value, index int32) (*JArray, error) {
	if ref.IsNull() {
		return nil, NewJavaException("java/lang/NullPointerException", "")
	}
	arr, ok := ref.Ref.(*JArray)
	if !ok {
		return nil, fmt.Errorf("reference is not an array")
	}
	if index < 0 || int(index) >= len(arr.Elements) {
		return nil, NewJavaException("java/lang/ArrayIndexOutOfBoundsException",
			fmt.Sprintf("Index %d out of bounds for length %d", index, len(arr.Elements)))
	}
	return arr, nil
}

// sameRef compares two references by identity.
func sameRef(a, b Value) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	switch x := a.Ref.(type) {
	case string:
		// ldc of equal literals yields the same interned String
		y, ok := b.Ref.(string)
		return ok && x == y
	default:
		return a.Ref == b.Ref
	}
}
