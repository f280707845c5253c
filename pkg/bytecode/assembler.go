package bytecode

import (
	"fmt"

	"github.com/daimatz/warzone-loader/pkg/classfile"
)

// Assembler builds a class from scratch. It is used by tooling and tests to
// produce class files without a Java compiler.
type Assembler struct {
	cf      *classfile.ClassFile
	methods []methodSpec
	err     error
}

type methodSpec struct {
	access              uint16
	name, desc          string
	maxStack, maxLocals uint16
	insns               []Insn
	handlers            []handlerSpec
}

type handlerSpec struct {
	start, end, handler uint16
	catchType           string
}

// NewAssembler starts a public class named name extending super.
func NewAssembler(name, super string) *Assembler {
	a := &Assembler{cf: &classfile.ClassFile{
		MajorVersion: 61,
		AccessFlags:  classfile.AccPublic | classfile.AccSuper,
	}}
	a.cf.ThisClass = a.index(a.cf.ClassIndex(name))
	a.cf.SuperClass = a.index(a.cf.ClassIndex(super))
	return a
}

func (a *Assembler) index(i uint16, err error) uint16 {
	if err != nil && a.err == nil {
		a.err = err
	}
	return i
}

// Field declares a field.
func (a *Assembler) Field(access uint16, name, desc string) *Assembler {
	a.cf.Fields = append(a.cf.Fields, classfile.FieldInfo{
		AccessFlags:     access,
		NameIndex:       a.index(a.cf.Utf8Index(name)),
		DescriptorIndex: a.index(a.cf.Utf8Index(desc)),
		Name:            name,
		Descriptor:      desc,
	})
	return a
}

// Method declares a method with a body.
func (a *Assembler) Method(access uint16, name, desc string, maxStack, maxLocals uint16, insns ...Insn) *Assembler {
	a.methods = append(a.methods, methodSpec{
		access:    access,
		name:      name,
		desc:      desc,
		maxStack:  maxStack,
		maxLocals: maxLocals,
		insns:     insns,
	})
	return a
}

// Catch adds an exception table entry to the most recently declared method.
// An empty catchType catches everything.
func (a *Assembler) Catch(start, end, handler uint16, catchType string) *Assembler {
	if len(a.methods) == 0 {
		if a.err == nil {
			a.err = fmt.Errorf("catch declared before any method")
		}
		return a
	}
	m := &a.methods[len(a.methods)-1]
	m.handlers = append(m.handlers, handlerSpec{start: start, end: end, handler: handler, catchType: catchType})
	return a
}

// Class returns the assembled class as a node ready for Bytes.
func (a *Assembler) Class() (*ClassNode, error) {
	if a.err != nil {
		return nil, a.err
	}
	codeName := a.index(a.cf.Utf8Index("Code"))

	a.cf.Methods = make([]classfile.MethodInfo, len(a.methods))
	for i, spec := range a.methods {
		a.cf.Methods[i] = classfile.MethodInfo{
			AccessFlags:     spec.access,
			NameIndex:       a.index(a.cf.Utf8Index(spec.name)),
			DescriptorIndex: a.index(a.cf.Utf8Index(spec.desc)),
			Name:            spec.name,
			Descriptor:      spec.desc,
			Attributes:      []classfile.AttributeInfo{{NameIndex: codeName, Name: "Code"}},
			Code:            &classfile.CodeAttribute{MaxStack: spec.maxStack, MaxLocals: spec.maxLocals},
		}
		for _, h := range spec.handlers {
			var catchIndex uint16
			if h.catchType != "" {
				catchIndex = a.index(a.cf.ClassIndex(h.catchType))
			}
			a.cf.Methods[i].Code.ExceptionHandlers = append(a.cf.Methods[i].Code.ExceptionHandlers, classfile.ExceptionHandler{
				StartPC:   h.start,
				EndPC:     h.end,
				HandlerPC: h.handler,
				CatchType: catchIndex,
			})
		}
	}
	if a.err != nil {
		return nil, a.err
	}

	name, err := a.cf.ClassName()
	if err != nil {
		return nil, err
	}
	node := &ClassNode{Name: name, file: a.cf}
	for i, spec := range a.methods {
		node.Methods = append(node.Methods, &MethodNode{
			Access:       spec.access,
			Name:         spec.name,
			Desc:         spec.desc,
			Instructions: NewInsnList(spec.insns...),
			info:         &a.cf.Methods[i],
		})
	}
	return node, nil
}

// Bytes assembles and serializes the class.
func (a *Assembler) Bytes() ([]byte, error) {
	node, err := a.Class()
	if err != nil {
		return nil, err
	}
	return node.Bytes()
}

// Invoke builds a MethodInsn.
func Invoke(op byte, owner, name, desc string) *MethodInsn {
	return &MethodInsn{Op: op, Owner: owner, Name: name, Desc: desc}
}

// Field builds a FieldInsn.
func Field(op byte, owner, name, desc string) *FieldInsn {
	return &FieldInsn{Op: op, Owner: owner, Name: name, Desc: desc}
}

// Ldc builds an ldc of an int32 or string constant.
func Ldc(v any) *LdcInsn {
	return &LdcInsn{Op: OpLdc, Value: v}
}
