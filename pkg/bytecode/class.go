// Package bytecode is a structural model of a compiled class: a class node
// holding method nodes, each with an ordered, append-only instruction list.
// It is enough to locate a method, add a call at the end of it and write the
// class back out.
package bytecode

import (
	"fmt"

	"github.com/daimatz/warzone-loader/pkg/classfile"
)

// ClassNode is a decoded class.
type ClassNode struct {
	// Name is the internal name, e.g. "net/darktree/warzone/Main".
	Name    string
	Methods []*MethodNode

	file *classfile.ClassFile
}

// MethodNode is a decoded method. Instructions is nil for abstract and
// native methods.
type MethodNode struct {
	Access       uint16
	Name         string
	Desc         string
	Instructions *InsnList

	info *classfile.MethodInfo
}

// ReadClass parses raw class bytes into a ClassNode.
func ReadClass(raw []byte) (*ClassNode, error) {
	cf, err := classfile.ParseBytes(raw)
	if err != nil {
		return nil, err
	}
	return FromClassFile(cf)
}

// FromClassFile decodes every method body of cf. The node keeps cf and
// writes changes back into it on Bytes.
func FromClassFile(cf *classfile.ClassFile) (*ClassNode, error) {
	name, err := cf.ClassName()
	if err != nil {
		return nil, fmt.Errorf("resolving class name: %w", err)
	}
	node := &ClassNode{Name: name, file: cf}
	for i := range cf.Methods {
		info := &cf.Methods[i]
		m := &MethodNode{
			Access: info.AccessFlags,
			Name:   info.Name,
			Desc:   info.Descriptor,
			info:   info,
		}
		if info.Code != nil {
			insns, err := decode(info.Code.Code, cf.ConstantPool)
			if err != nil {
				return nil, fmt.Errorf("decoding %s.%s%s: %w", name, info.Name, info.Descriptor, err)
			}
			m.Instructions = NewInsnList(insns...)
		}
		node.Methods = append(node.Methods, m)
	}
	return node, nil
}

// File returns the class file backing the node.
func (c *ClassNode) File() *classfile.ClassFile { return c.file }

// FindMethod returns the first method matching pred, or nil.
func (c *ClassNode) FindMethod(pred func(*MethodNode) bool) *MethodNode {
	for _, m := range c.Methods {
		if pred(m) {
			return m
		}
	}
	return nil
}

// Bytes re-encodes every method body into the backing class file and
// serializes it.
func (c *ClassNode) Bytes() ([]byte, error) {
	for _, m := range c.Methods {
		if m.Instructions == nil || m.info == nil {
			continue
		}
		code, err := encode(c.file, m.Instructions.nodes)
		if err != nil {
			return nil, fmt.Errorf("encoding %s.%s%s: %w", c.Name, m.Name, m.Desc, err)
		}
		if m.info.Code == nil {
			return nil, fmt.Errorf("encoding %s.%s%s: method has no Code attribute", c.Name, m.Name, m.Desc)
		}
		m.info.Code.Code = code
	}
	return c.file.Encode()
}
