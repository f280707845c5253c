package provider

import (
	"go.uber.org/zap"

	"github.com/daimatz/warzone-loader/pkg/loader"
	"github.com/daimatz/warzone-loader/pkg/vm"
)

// HookKey identifies the hook method the patch calls.
var HookKey = vm.MethodKey{Owner: HookOwner, Name: HookName, Desc: HookDesc}

// InitEntrypoint is the entrypoint key of mod initializers.
const InitEntrypoint = "main"

// ModHost is the part of the loader the hook needs.
type ModHost interface {
	loader.EntrypointSource
	PrepareModInit(runDir string, gameInstance any) error
	GameInstance() any
}

// Hooks runs mod initializers when the patched entrypoint reaches the hook.
type Hooks struct {
	host   ModHost
	runDir string
}

// NewHooks returns hooks dispatching to host.
func NewHooks(host ModHost, runDir string) *Hooks {
	return &Hooks{host: host, runDir: runDir}
}

// Init prepares mod initialization and runs every "main" initializer.
// Initializer errors are returned as reported by loader.Invoke.
func (h *Hooks) Init() error {
	if err := h.host.PrepareModInit(h.runDir, h.host.GameInstance()); err != nil {
		return err
	}
	log := Logger().Named(CategoryEntrypoint)
	log.Debug("dispatching initializers",
		zap.String("key", InitEntrypoint),
		zap.Int("count", len(h.host.Entrypoints(InitEntrypoint))))
	if err := loader.Invoke(h.host, InitEntrypoint, loader.ModInitializer.OnInitialize); err != nil {
		log.Error("initializers failed", zap.Error(err))
		return err
	}
	return nil
}

// Natives binds Init as the implementation of the hook method.
func (h *Hooks) Natives() vm.Natives {
	return vm.Natives{
		HookKey: func([]vm.Value) (vm.Value, error) {
			return vm.Value{}, h.Init()
		},
	}
}
