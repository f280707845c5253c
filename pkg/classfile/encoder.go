package classfile

import (
	"fmt"
	"math"
)

// Encode serializes the class file. Code attributes are rebuilt from
// MethodInfo.Code so edits to the bytecode reach the output; every other
// attribute is written back verbatim.
func (cf *ClassFile) Encode() ([]byte, error) {
	w := &writer{}
	w.u4(classMagic)
	w.u2(cf.MinorVersion)
	w.u2(cf.MajorVersion)

	if err := writeConstantPool(w, cf.ConstantPool); err != nil {
		return nil, fmt.Errorf("encoding constant pool: %w", err)
	}

	w.u2(cf.AccessFlags)
	w.u2(cf.ThisClass)
	w.u2(cf.SuperClass)
	w.u2(uint16(len(cf.Interfaces)))
	for _, iface := range cf.Interfaces {
		w.u2(iface)
	}

	w.u2(uint16(len(cf.Fields)))
	for _, f := range cf.Fields {
		w.u2(f.AccessFlags)
		w.u2(f.NameIndex)
		w.u2(f.DescriptorIndex)
		if err := writeAttributes(w, f.Attributes); err != nil {
			return nil, fmt.Errorf("encoding field %s: %w", f.Name, err)
		}
	}

	w.u2(uint16(len(cf.Methods)))
	for i := range cf.Methods {
		m := &cf.Methods[i]
		attrs, err := cf.methodAttributes(m)
		if err != nil {
			return nil, fmt.Errorf("encoding method %s%s: %w", m.Name, m.Descriptor, err)
		}
		w.u2(m.AccessFlags)
		w.u2(m.NameIndex)
		w.u2(m.DescriptorIndex)
		if err := writeAttributes(w, attrs); err != nil {
			return nil, fmt.Errorf("encoding method %s%s: %w", m.Name, m.Descriptor, err)
		}
	}

	if err := writeAttributes(w, cf.Attributes); err != nil {
		return nil, fmt.Errorf("encoding class attributes: %w", err)
	}
	return w.Bytes(), nil
}

// methodAttributes returns m.Attributes with the Code entry re-encoded from
// m.Code. A Code attribute is added when the method gained one.
func (cf *ClassFile) methodAttributes(m *MethodInfo) ([]AttributeInfo, error) {
	if m.Code == nil {
		return m.Attributes, nil
	}
	data, err := encodeCode(m.Code)
	if err != nil {
		return nil, err
	}

	attrs := make([]AttributeInfo, len(m.Attributes))
	copy(attrs, m.Attributes)
	for i := range attrs {
		if attrs[i].Name == "Code" {
			attrs[i].Data = data
			return attrs, nil
		}
	}

	nameIndex, err := cf.Utf8Index("Code")
	if err != nil {
		return nil, err
	}
	return append(attrs, AttributeInfo{NameIndex: nameIndex, Name: "Code", Data: data}), nil
}

func encodeCode(code *CodeAttribute) ([]byte, error) {
	if len(code.Code) == 0 || len(code.Code) > math.MaxUint16 {
		return nil, fmt.Errorf("code length %d out of range", len(code.Code))
	}
	w := &writer{}
	w.u2(code.MaxStack)
	w.u2(code.MaxLocals)
	w.u4(uint32(len(code.Code)))
	w.raw(code.Code)
	w.u2(uint16(len(code.ExceptionHandlers)))
	for _, h := range code.ExceptionHandlers {
		w.u2(h.StartPC)
		w.u2(h.EndPC)
		w.u2(h.HandlerPC)
		w.u2(h.CatchType)
	}
	if err := writeAttributes(w, code.Attributes); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func writeAttributes(w *writer, attrs []AttributeInfo) error {
	w.u2(uint16(len(attrs)))
	for _, a := range attrs {
		if uint64(len(a.Data)) > math.MaxUint32 {
			return fmt.Errorf("attribute %s too large", a.Name)
		}
		w.u2(a.NameIndex)
		w.u4(uint32(len(a.Data)))
		w.raw(a.Data)
	}
	return nil
}
