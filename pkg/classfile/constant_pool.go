package classfile

import (
	"fmt"
	"math"
)

// Constant pool tags
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagDynamic            = 17
	TagInvokeDynamic      = 18
	TagModule             = 19
	TagPackage            = 20
)

// maxPoolSize is the largest constant_pool_count a class file can declare.
const maxPoolSize = math.MaxUint16

// ConstantPoolEntry is an interface implemented by all constant pool types.
type ConstantPoolEntry interface {
	Tag() uint8
}

type ConstantUtf8 struct {
	Value string
}

func (c *ConstantUtf8) Tag() uint8 { return TagUtf8 }

type ConstantInteger struct {
	Value int32
}

func (c *ConstantInteger) Tag() uint8 { return TagInteger }

type ConstantFloat struct {
	Value float32
}

func (c *ConstantFloat) Tag() uint8 { return TagFloat }

type ConstantLong struct {
	Value int64
}

func (c *ConstantLong) Tag() uint8 { return TagLong }

type ConstantDouble struct {
	Value float64
}

func (c *ConstantDouble) Tag() uint8 { return TagDouble }

type ConstantClass struct {
	NameIndex uint16
}

func (c *ConstantClass) Tag() uint8 { return TagClass }

type ConstantString struct {
	StringIndex uint16
}

func (c *ConstantString) Tag() uint8 { return TagString }

type ConstantFieldref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *ConstantFieldref) Tag() uint8 { return TagFieldref }

type ConstantMethodref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *ConstantMethodref) Tag() uint8 { return TagMethodref }

type ConstantInterfaceMethodref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *ConstantInterfaceMethodref) Tag() uint8 { return TagInterfaceMethodref }

type ConstantNameAndType struct {
	NameIndex       uint16
	DescriptorIndex uint16
}

func (c *ConstantNameAndType) Tag() uint8 { return TagNameAndType }

// ConstantOpaque holds an entry this package does not interpret
// (method handles, dynamic constants, modules). The body is kept verbatim so
// the pool can be written back unchanged.
type ConstantOpaque struct {
	tag  uint8
	Body []byte
}

func (c *ConstantOpaque) Tag() uint8 { return c.tag }

// opaqueBodySize is the fixed body length of each opaque tag.
var opaqueBodySize = map[uint8]int{
	TagMethodHandle:  3, // reference_kind u1 + reference_index u2
	TagMethodType:    2, // descriptor_index
	TagDynamic:       4, // bootstrap_method_attr_index + name_and_type_index
	TagInvokeDynamic: 4,
	TagModule:        2,
	TagPackage:       2,
}

// parseConstantPool reads constant_pool_count-1 entries.
// The returned slice is 1-indexed: index 0 is nil, and so is the slot
// following every long or double.
func parseConstantPool(r *reader, count uint16) ([]ConstantPoolEntry, error) {
	pool := make([]ConstantPoolEntry, count)

	for i := uint16(1); i < count; i++ {
		tag := r.u1()
		if r.err != nil {
			return nil, fmt.Errorf("reading constant pool tag at index %d: %w", i, r.err)
		}

		switch tag {
		case TagUtf8:
			length := r.u2()
			pool[i] = &ConstantUtf8{Value: string(r.bytes(int(length)))}
		case TagInteger:
			pool[i] = &ConstantInteger{Value: int32(r.u4())}
		case TagFloat:
			pool[i] = &ConstantFloat{Value: math.Float32frombits(r.u4())}
		case TagLong:
			pool[i] = &ConstantLong{Value: int64(r.u8())}
			i++
		case TagDouble:
			pool[i] = &ConstantDouble{Value: math.Float64frombits(r.u8())}
			i++
		case TagClass:
			pool[i] = &ConstantClass{NameIndex: r.u2()}
		case TagString:
			pool[i] = &ConstantString{StringIndex: r.u2()}
		case TagFieldref:
			pool[i] = &ConstantFieldref{ClassIndex: r.u2(), NameAndTypeIndex: r.u2()}
		case TagMethodref:
			pool[i] = &ConstantMethodref{ClassIndex: r.u2(), NameAndTypeIndex: r.u2()}
		case TagInterfaceMethodref:
			pool[i] = &ConstantInterfaceMethodref{ClassIndex: r.u2(), NameAndTypeIndex: r.u2()}
		case TagNameAndType:
			pool[i] = &ConstantNameAndType{NameIndex: r.u2(), DescriptorIndex: r.u2()}
		default:
			size, ok := opaqueBodySize[tag]
			if !ok {
				return nil, fmt.Errorf("unknown constant pool tag %d at index %d", tag, i)
			}
			pool[i] = &ConstantOpaque{tag: tag, Body: r.bytes(size)}
		}

		if r.err != nil {
			return nil, fmt.Errorf("reading constant pool entry %d (tag=%d): %w", i, tag, r.err)
		}
	}

	return pool, nil
}

// writeConstantPool is the inverse of parseConstantPool.
func writeConstantPool(w *writer, pool []ConstantPoolEntry) error {
	w.u2(uint16(len(pool)))
	for i := 1; i < len(pool); i++ {
		entry := pool[i]
		if entry == nil {
			// second slot of a long/double
			continue
		}
		w.u1(entry.Tag())
		switch c := entry.(type) {
		case *ConstantUtf8:
			if len(c.Value) > math.MaxUint16 {
				return fmt.Errorf("utf8 constant at index %d too long: %d bytes", i, len(c.Value))
			}
			w.u2(uint16(len(c.Value)))
			w.raw([]byte(c.Value))
		case *ConstantInteger:
			w.u4(uint32(c.Value))
		case *ConstantFloat:
			w.u4(math.Float32bits(c.Value))
		case *ConstantLong:
			w.u8(uint64(c.Value))
		case *ConstantDouble:
			w.u8(math.Float64bits(c.Value))
		case *ConstantClass:
			w.u2(c.NameIndex)
		case *ConstantString:
			w.u2(c.StringIndex)
		case *ConstantFieldref:
			w.u2(c.ClassIndex)
			w.u2(c.NameAndTypeIndex)
		case *ConstantMethodref:
			w.u2(c.ClassIndex)
			w.u2(c.NameAndTypeIndex)
		case *ConstantInterfaceMethodref:
			w.u2(c.ClassIndex)
			w.u2(c.NameAndTypeIndex)
		case *ConstantNameAndType:
			w.u2(c.NameIndex)
			w.u2(c.DescriptorIndex)
		case *ConstantOpaque:
			w.raw(c.Body)
		default:
			return fmt.Errorf("cannot encode constant pool entry %d (tag=%d)", i, entry.Tag())
		}
	}
	return nil
}

// GetUtf8 returns the Utf8 string at the given constant pool index.
func GetUtf8(pool []ConstantPoolEntry, index uint16) (string, error) {
	if int(index) >= len(pool) || pool[index] == nil {
		return "", fmt.Errorf("invalid constant pool index %d", index)
	}
	utf8, ok := pool[index].(*ConstantUtf8)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Utf8 (tag=%d)", index, pool[index].Tag())
	}
	return utf8.Value, nil
}

// GetClassName returns the class name referenced by a CONSTANT_Class entry.
func GetClassName(pool []ConstantPoolEntry, classIndex uint16) (string, error) {
	if int(classIndex) >= len(pool) || pool[classIndex] == nil {
		return "", fmt.Errorf("invalid constant pool index %d", classIndex)
	}
	class, ok := pool[classIndex].(*ConstantClass)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Class", classIndex)
	}
	return GetUtf8(pool, class.NameIndex)
}

// MemberRef is a resolved field, method or interface method reference.
type MemberRef struct {
	ClassName  string
	Name       string
	Descriptor string
}

func (m *MemberRef) String() string {
	return m.ClassName + "." + m.Name + ":" + m.Descriptor
}

// ResolveMethodref resolves a CONSTANT_Methodref entry.
func ResolveMethodref(pool []ConstantPoolEntry, index uint16) (*MemberRef, error) {
	return resolveMember(pool, index, TagMethodref)
}

// ResolveInterfaceMethodref resolves a CONSTANT_InterfaceMethodref entry.
func ResolveInterfaceMethodref(pool []ConstantPoolEntry, index uint16) (*MemberRef, error) {
	return resolveMember(pool, index, TagInterfaceMethodref)
}

// ResolveFieldref resolves a CONSTANT_Fieldref entry.
func ResolveFieldref(pool []ConstantPoolEntry, index uint16) (*MemberRef, error) {
	return resolveMember(pool, index, TagFieldref)
}

// ResolveAnyMethodref resolves either kind of method reference; invokestatic
// may target an interface method since class file version 52.
func ResolveAnyMethodref(pool []ConstantPoolEntry, index uint16) (*MemberRef, error) {
	if int(index) < len(pool) && pool[index] != nil && pool[index].Tag() == TagInterfaceMethodref {
		return resolveMember(pool, index, TagInterfaceMethodref)
	}
	return resolveMember(pool, index, TagMethodref)
}

func resolveMember(pool []ConstantPoolEntry, index uint16, tag uint8) (*MemberRef, error) {
	if int(index) >= len(pool) || pool[index] == nil {
		return nil, fmt.Errorf("invalid constant pool index %d", index)
	}

	var classIndex, natIndex uint16
	switch ref := pool[index].(type) {
	case *ConstantFieldref:
		classIndex, natIndex = ref.ClassIndex, ref.NameAndTypeIndex
	case *ConstantMethodref:
		classIndex, natIndex = ref.ClassIndex, ref.NameAndTypeIndex
	case *ConstantInterfaceMethodref:
		classIndex, natIndex = ref.ClassIndex, ref.NameAndTypeIndex
	}
	if pool[index].Tag() != tag {
		return nil, fmt.Errorf("constant pool index %d has tag %d, want %d", index, pool[index].Tag(), tag)
	}

	className, err := GetClassName(pool, classIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving member class: %w", err)
	}

	if int(natIndex) >= len(pool) || pool[natIndex] == nil {
		return nil, fmt.Errorf("invalid NameAndType index %d", natIndex)
	}
	nat, ok := pool[natIndex].(*ConstantNameAndType)
	if !ok {
		return nil, fmt.Errorf("constant pool index %d is not NameAndType", natIndex)
	}

	name, err := GetUtf8(pool, nat.NameIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving member name: %w", err)
	}
	descriptor, err := GetUtf8(pool, nat.DescriptorIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving member descriptor: %w", err)
	}

	return &MemberRef{ClassName: className, Name: name, Descriptor: descriptor}, nil
}

// appendConstant adds an entry at the end of the pool and returns its index.
func (cf *ClassFile) appendConstant(entry ConstantPoolEntry) (uint16, error) {
	if len(cf.ConstantPool) == 0 {
		cf.ConstantPool = []ConstantPoolEntry{nil}
	}
	if len(cf.ConstantPool) >= maxPoolSize {
		return 0, fmt.Errorf("constant pool full (%d entries)", len(cf.ConstantPool))
	}
	cf.ConstantPool = append(cf.ConstantPool, entry)
	return uint16(len(cf.ConstantPool) - 1), nil
}

// Utf8Index returns the index of a Utf8 entry holding s, appending one if needed.
func (cf *ClassFile) Utf8Index(s string) (uint16, error) {
	for i, e := range cf.ConstantPool {
		if u, ok := e.(*ConstantUtf8); ok && u.Value == s {
			return uint16(i), nil
		}
	}
	return cf.appendConstant(&ConstantUtf8{Value: s})
}

// ClassIndex returns the index of a Class entry naming name, appending one if needed.
func (cf *ClassFile) ClassIndex(name string) (uint16, error) {
	nameIndex, err := cf.Utf8Index(name)
	if err != nil {
		return 0, err
	}
	for i, e := range cf.ConstantPool {
		if c, ok := e.(*ConstantClass); ok && c.NameIndex == nameIndex {
			return uint16(i), nil
		}
	}
	return cf.appendConstant(&ConstantClass{NameIndex: nameIndex})
}

// StringIndex returns the index of a String entry for s, appending one if needed.
func (cf *ClassFile) StringIndex(s string) (uint16, error) {
	utf8Index, err := cf.Utf8Index(s)
	if err != nil {
		return 0, err
	}
	for i, e := range cf.ConstantPool {
		if c, ok := e.(*ConstantString); ok && c.StringIndex == utf8Index {
			return uint16(i), nil
		}
	}
	return cf.appendConstant(&ConstantString{StringIndex: utf8Index})
}

// IntegerIndex returns the index of an Integer entry for v, appending one if needed.
func (cf *ClassFile) IntegerIndex(v int32) (uint16, error) {
	for i, e := range cf.ConstantPool {
		if c, ok := e.(*ConstantInteger); ok && c.Value == v {
			return uint16(i), nil
		}
	}
	return cf.appendConstant(&ConstantInteger{Value: v})
}

// NameAndTypeIndex returns the index of a NameAndType entry, appending one if needed.
func (cf *ClassFile) NameAndTypeIndex(name, descriptor string) (uint16, error) {
	nameIndex, err := cf.Utf8Index(name)
	if err != nil {
		return 0, err
	}
	descIndex, err := cf.Utf8Index(descriptor)
	if err != nil {
		return 0, err
	}
	for i, e := range cf.ConstantPool {
		if c, ok := e.(*ConstantNameAndType); ok && c.NameIndex == nameIndex && c.DescriptorIndex == descIndex {
			return uint16(i), nil
		}
	}
	return cf.appendConstant(&ConstantNameAndType{NameIndex: nameIndex, DescriptorIndex: descIndex})
}

// MethodrefIndex returns the index of a Methodref (or InterfaceMethodref when
// iface is set) for owner.name:descriptor, appending entries as needed.
func (cf *ClassFile) MethodrefIndex(owner, name, descriptor string, iface bool) (uint16, error) {
	classIndex, err := cf.ClassIndex(owner)
	if err != nil {
		return 0, err
	}
	natIndex, err := cf.NameAndTypeIndex(name, descriptor)
	if err != nil {
		return 0, err
	}
	for i, e := range cf.ConstantPool {
		switch c := e.(type) {
		case *ConstantMethodref:
			if !iface && c.ClassIndex == classIndex && c.NameAndTypeIndex == natIndex {
				return uint16(i), nil
			}
		case *ConstantInterfaceMethodref:
			if iface && c.ClassIndex == classIndex && c.NameAndTypeIndex == natIndex {
				return uint16(i), nil
			}
		}
	}
	if iface {
		return cf.appendConstant(&ConstantInterfaceMethodref{ClassIndex: classIndex, NameAndTypeIndex: natIndex})
	}
	return cf.appendConstant(&ConstantMethodref{ClassIndex: classIndex, NameAndTypeIndex: natIndex})
}

// FieldrefIndex returns the index of a Fieldref for owner.name:descriptor,
// appending entries as needed.
func (cf *ClassFile) FieldrefIndex(owner, name, descriptor string) (uint16, error) {
	classIndex, err := cf.ClassIndex(owner)
	if err != nil {
		return 0, err
	}
	natIndex, err := cf.NameAndTypeIndex(name, descriptor)
	if err != nil {
		return 0, err
	}
	for i, e := range cf.ConstantPool {
		if c, ok := e.(*ConstantFieldref); ok && c.ClassIndex == classIndex && c.NameAndTypeIndex == natIndex {
			return uint16(i), nil
		}
	}
	return cf.appendConstant(&ConstantFieldref{ClassIndex: classIndex, NameAndTypeIndex: natIndex})
}
