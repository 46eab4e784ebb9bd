package scripting

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/Unwrenchable/fizz-caps/internal/game/dice"
)

// ErrNoHook is returned by CallHook when the namespace has no VM or the VM
// does not define the hook.
var ErrNoHook = errors.New("scripting: hook not defined")

type vm struct {
	mu     sync.Mutex
	state  *lua.LState
	cancel context.CancelFunc
	limit  int
}

// Manager owns one sandboxed LState per script namespace (e.g. "raid") and
// exposes hook dispatch.
//
// Manager is safe for concurrent use. An LState is single-threaded, so calls
// into the same namespace are serialized while different namespaces run
// concurrently.
type Manager struct {
	mu     sync.RWMutex
	vms    map[string]*vm
	roller *dice.Roller
	logger *zap.Logger
}

// NewManager creates a Manager.
//
// Precondition: roller and logger must be non-nil.
// Postcondition: Returns a non-nil Manager with no namespaces loaded.
func NewManager(roller *dice.Roller, logger *zap.Logger) *Manager {
	if roller == nil {
		panic("scripting: NewManager requires a non-nil roller")
	}
	if logger == nil {
		panic("scripting: NewManager requires a non-nil logger")
	}
	return &Manager{
		vms:    make(map[string]*vm),
		roller: roller,
		logger: logger,
	}
}

// Load creates a sandboxed VM for namespace, registers the fizz module, then
// executes every *.lua file in scriptDir in lexicographic order. Loading a
// namespace twice replaces the previous VM.
//
// Precondition: namespace must be non-empty; scriptDir must be a readable directory.
// Postcondition: The namespace VM is registered; returns error on Lua load failure.
func (m *Manager) Load(namespace, scriptDir string, instLimit int) error {
	L, cancel := NewSandboxedState(instLimit)
	m.RegisterModules(L, namespace)

	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		cancel()
		L.Close()
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", scriptDir, namespace, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	for _, path := range luaFiles {
		if err := L.DoFile(path); err != nil {
			cancel()
			L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, namespace, err)
		}
	}

	m.mu.Lock()
	old := m.vms[namespace]
	m.vms[namespace] = &vm{state: L, cancel: cancel, limit: limitOrDefault(instLimit)}
	m.mu.Unlock()

	if old != nil {
		old.close()
	}
	m.logger.Info("scripts loaded",
		zap.String("namespace", namespace),
		zap.Int("files", len(luaFiles)),
	)
	return nil
}

// Has reports whether namespace has a VM defining hook.
func (m *Manager) Has(namespace, hook string) bool {
	m.mu.RLock()
	v := m.vms[namespace]
	m.mu.RUnlock()
	if v == nil {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state != nil && v.state.GetGlobal(hook).Type() == lua.LTFunction
}

// CallHook calls the named Lua global function in namespace's VM with a
// fresh instruction budget bounded by ctx, and returns nret results.
//
// Precondition: args must be valid lua.LValue instances; nret >= 1.
// Postcondition: Returns ErrNoHook if the hook is missing. Lua runtime
// errors, including budget exhaustion, are logged at Warn level and
// returned wrapped.
func (m *Manager) CallHook(ctx context.Context, namespace, hook string, nret int, args ...lua.LValue) ([]lua.LValue, error) {
	m.mu.RLock()
	v := m.vms[namespace]
	m.mu.RUnlock()
	if v == nil {
		return nil, ErrNoHook
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == nil {
		return nil, ErrNoHook
	}
	L := v.state

	fn := L.GetGlobal(hook)
	if fn.Type() != lua.LTFunction {
		return nil, ErrNoHook
	}

	budget, cancel := newCountingContext(ctx, v.limit)
	defer cancel()
	L.SetContext(budget)

	if err := L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    nret,
		Protect: true,
	}, args...); err != nil {
		m.logger.Warn("lua runtime error",
			zap.String("namespace", namespace),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return nil, fmt.Errorf("scripting: %s.%s: %w", namespace, hook, err)
	}

	out := make([]lua.LValue, nret)
	for i := 0; i < nret; i++ {
		out[i] = L.Get(-nret + i)
	}
	L.Pop(nret)
	return out, nil
}

// Close releases every VM. Subsequent CallHook calls return ErrNoHook.
func (m *Manager) Close() {
	m.mu.Lock()
	vms := m.vms
	m.vms = make(map[string]*vm)
	m.mu.Unlock()
	for _, v := range vms {
		v.close()
	}
}

func (v *vm) close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == nil {
		return
	}
	v.cancel()
	v.state.Close()
	v.state = nil
}
