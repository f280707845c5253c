package classfile

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

const classMagic = 0xCAFEBABE

// ParseFile opens and parses a .class file from the given path.
func ParseFile(path string) (*ClassFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// ParseBytes parses an in-memory class file.
func ParseBytes(b []byte) (*ClassFile, error) {
	return Parse(bytes.NewReader(b))
}

// Parse reads a .class file from the given reader and returns a ClassFile.
func Parse(in io.Reader) (*ClassFile, error) {
	r := &reader{r: in}
	cf := &ClassFile{}

	magic := r.u4()
	if r.err != nil {
		return nil, fmt.Errorf("reading magic number: %w", r.err)
	}
	if magic != classMagic {
		return nil, fmt.Errorf("invalid magic number: 0x%X (expected 0xCAFEBABE)", magic)
	}

	cf.MinorVersion = r.u2()
	cf.MajorVersion = r.u2()
	cpCount := r.u2()
	if r.err != nil {
		return nil, fmt.Errorf("reading header: %w", r.err)
	}

	pool, err := parseConstantPool(r, cpCount)
	if err != nil {
		return nil, fmt.Errorf("parsing constant pool: %w", err)
	}
	cf.ConstantPool = pool

	cf.AccessFlags = r.u2()
	cf.ThisClass = r.u2()
	cf.SuperClass = r.u2()

	interfacesCount := r.u2()
	cf.Interfaces = make([]uint16, interfacesCount)
	for i := range cf.Interfaces {
		cf.Interfaces[i] = r.u2()
	}
	if r.err != nil {
		return nil, fmt.Errorf("reading class header: %w", r.err)
	}

	cf.Fields, err = parseFields(r, cf.ConstantPool)
	if err != nil {
		return nil, fmt.Errorf("parsing fields: %w", err)
	}

	cf.Methods, err = parseMethods(r, cf.ConstantPool)
	if err != nil {
		return nil, fmt.Errorf("parsing methods: %w", err)
	}

	cf.Attributes, err = parseAttributes(r, cf.ConstantPool)
	if err != nil {
		return nil, fmt.Errorf("parsing class attributes: %w", err)
	}

	return cf, nil
}

// memberHeader is the shared prefix of field_info and method_info.
type memberHeader struct {
	access, nameIndex, descIndex uint16
	name, desc                   string
	attrs                        []AttributeInfo
}

func parseMember(r *reader, pool []ConstantPoolEntry) (memberHeader, error) {
	var h memberHeader
	h.access = r.u2()
	h.nameIndex = r.u2()
	h.descIndex = r.u2()
	if r.err != nil {
		return h, r.err
	}

	var err error
	if h.name, err = GetUtf8(pool, h.nameIndex); err != nil {
		return h, fmt.Errorf("resolving name: %w", err)
	}
	if h.desc, err = GetUtf8(pool, h.descIndex); err != nil {
		return h, fmt.Errorf("resolving descriptor: %w", err)
	}
	if h.attrs, err = parseAttributes(r, pool); err != nil {
		return h, fmt.Errorf("parsing attributes of %s: %w", h.name, err)
	}
	return h, nil
}

func parseFields(r *reader, pool []ConstantPoolEntry) ([]FieldInfo, error) {
	count := r.u2()
	if r.err != nil {
		return nil, fmt.Errorf("reading fields count: %w", r.err)
	}
	fields := make([]FieldInfo, count)
	for i := range fields {
		h, err := parseMember(r, pool)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		fields[i] = FieldInfo{
			AccessFlags:     h.access,
			NameIndex:       h.nameIndex,
			DescriptorIndex: h.descIndex,
			Name:            h.name,
			Descriptor:      h.desc,
			Attributes:      h.attrs,
		}
	}
	return fields, nil
}

func parseMethods(r *reader, pool []ConstantPoolEntry) ([]MethodInfo, error) {
	count := r.u2()
	if r.err != nil {
		return nil, fmt.Errorf("reading methods count: %w", r.err)
	}
	methods := make([]MethodInfo, count)
	for i := range methods {
		h, err := parseMember(r, pool)
		if err != nil {
			return nil, fmt.Errorf("method %d: %w", i, err)
		}
		m := MethodInfo{
			AccessFlags:     h.access,
			NameIndex:       h.nameIndex,
			DescriptorIndex: h.descIndex,
			Name:            h.name,
			Descriptor:      h.desc,
			Attributes:      h.attrs,
		}
		for _, attr := range h.attrs {
			if attr.Name == "Code" {
				code, err := parseCodeAttribute(attr.Data, pool)
				if err != nil {
					return nil, fmt.Errorf("parsing Code attribute for method %s: %w", m.Name, err)
				}
				m.Code = code
				break
			}
		}
		methods[i] = m
	}
	return methods, nil
}

func parseAttributes(r *reader, pool []ConstantPoolEntry) ([]AttributeInfo, error) {
	count := r.u2()
	if r.err != nil {
		return nil, fmt.Errorf("reading attributes count: %w", r.err)
	}
	attrs := make([]AttributeInfo, count)
	for i := range attrs {
		nameIndex := r.u2()
		length := r.u4()
		data := r.bytes(int(length))
		if r.err != nil {
			return nil, fmt.Errorf("reading attribute %d: %w", i, r.err)
		}
		name, err := GetUtf8(pool, nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving attribute %d name: %w", i, err)
		}
		attrs[i] = AttributeInfo{NameIndex: nameIndex, Name: name, Data: data}
	}
	return attrs, nil
}

func parseCodeAttribute(data []byte, pool []ConstantPoolEntry) (*CodeAttribute, error) {
	r := &reader{r: bytes.NewReader(data)}

	code := &CodeAttribute{
		MaxStack:  r.u2(),
		MaxLocals: r.u2(),
	}
	codeLength := r.u4()
	if r.err != nil {
		return nil, fmt.Errorf("Code attribute too short: %d bytes", len(data))
	}
	if int(codeLength) > len(data)-8 {
		return nil, fmt.Errorf("Code attribute data too short for code_length %d", codeLength)
	}
	code.Code = r.bytes(int(codeLength))

	handlerCount := r.u2()
	code.ExceptionHandlers = make([]ExceptionHandler, handlerCount)
	for i := range code.ExceptionHandlers {
		code.ExceptionHandlers[i] = ExceptionHandler{
			StartPC:   r.u2(),
			EndPC:     r.u2(),
			HandlerPC: r.u2(),
			CatchType: r.u2(),
		}
	}
	if r.err != nil {
		return nil, fmt.Errorf("reading exception table: %w", r.err)
	}

	attrs, err := parseAttributes(r, pool)
	if err != nil {
		return nil, fmt.Errorf("parsing Code sub-attributes: %w", err)
	}
	code.Attributes = attrs
	return code, nil
}
