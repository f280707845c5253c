package provider

import (
	"fmt"

	"github.com/daimatz/warzone-loader/pkg/bytecode"
	"github.com/daimatz/warzone-loader/pkg/errors"
	"github.com/daimatz/warzone-loader/pkg/loader"
)

// The hook the patch calls. The VM binds it to Hooks.Init.
const (
	HookOwner = "net/darktree/loader/provider/services/WarzoneHooks"
	HookName  = "init"
	HookDesc  = "()V"
)

// initMethod is the method that receives the hook call.
const initMethod = "main"

// EntrypointPatch appends the hook call to the entrypoint's main method.
type EntrypointPatch struct{}

// Process implements loader.GamePatch.
func (EntrypointPatch) Process(launcher loader.Launcher, source loader.ClassSource, emit loader.ClassEmitter) error {
	entrypoint := launcher.Entrypoint()
	raw, err := source(entrypoint)
	if err != nil {
		return errors.Wrap(errors.PhasePatch, errors.KindConfiguration, err, "reading entrypoint "+entrypoint)
	}
	node, err := bytecode.ReadClass(raw)
	if err != nil {
		return errors.Wrap(errors.PhasePatch, errors.KindInvalidData, err, "parsing entrypoint "+entrypoint)
	}
	if err := patchInit(node, entrypoint); err != nil {
		return err
	}
	emit(node)
	return nil
}

// PatchClass applies the entrypoint patch to raw class bytes.
func PatchClass(raw []byte) ([]byte, error) {
	node, err := bytecode.ReadClass(raw)
	if err != nil {
		return nil, errors.Wrap(errors.PhasePatch, errors.KindInvalidData, err, "parsing class")
	}
	if err := patchInit(node, node.Name); err != nil {
		return nil, err
	}
	out, err := node.Bytes()
	if err != nil {
		return nil, errors.Wrap(errors.PhasePatch, errors.KindInvalidData, err, "encoding "+node.Name)
	}
	return out, nil
}

func patchInit(node *bytecode.ClassNode, entrypoint string) error {
	log := Logger().Named(CategoryGamePatch)

	m := node.FindMethod(func(m *bytecode.MethodNode) bool { return m.Name == initMethod })
	if m == nil || m.Instructions == nil {
		return errors.Configuration(errors.PhasePatch, fmt.Sprintf("Could not find init method in %s!", entrypoint))
	}
	log.Debug(fmt.Sprintf("Found init method: %s -> %s", entrypoint, node.Name))
	log.Debug(fmt.Sprintf("Patching init method %s%s", m.Name, m.Desc))

	if last := m.Instructions.Last(); last != nil && terminal(last.Opcode()) {
		log.Warn(fmt.Sprintf("%s%s ends with %s, the appended hook call is unreachable", m.Name, m.Desc, bytecode.Mnemonic(last.Opcode())))
	}
	m.Instructions.Append(bytecode.Invoke(bytecode.OpInvokestatic, HookOwner, HookName, HookDesc))
	return nil
}

func terminal(op byte) bool {
	switch op {
	case bytecode.OpReturn, bytecode.OpIreturn, bytecode.OpAreturn, bytecode.OpAthrow, bytecode.OpGoto:
		return true
	}
	return false
}
