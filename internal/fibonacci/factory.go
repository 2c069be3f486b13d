package fibonacci

import (
	"fmt"
	"sort"
	"sync"
)

// CalculatorFactory resolves calculators by name.
type CalculatorFactory interface {
	// Get returns the calculator registered under name.
	Get(name string) (Calculator, error)
	// List returns the registered names in sorted order.
	List() []string
	// Register adds or replaces a calculator constructor.
	Register(name string, create func() Calculator)
}

// builtins holds constructors registered at init time, including optional
// backends compiled in with build tags.
var (
	builtinsMu sync.Mutex
	builtins   = map[string]func() Calculator{
		"iterative": func() Calculator { return Iterative{} },
		"fast":      func() Calculator { return FastDoubling{} },
	}
)

func registerBuiltin(name string, create func() Calculator) {
	builtinsMu.Lock()
	defer builtinsMu.Unlock()
	builtins[name] = create
}

// DefaultFactory is a mutex-guarded name → calculator registry. Calculators
// are created lazily and reused.
type DefaultFactory struct {
	mu       sync.RWMutex
	creators map[string]func() Calculator
	cache    map[string]Calculator
}

// NewDefaultFactory returns a factory holding every built-in calculator.
func NewDefaultFactory() *DefaultFactory {
	f := &DefaultFactory{
		creators: make(map[string]func() Calculator),
		cache:    make(map[string]Calculator),
	}
	builtinsMu.Lock()
	for name, create := range builtins {
		f.creators[name] = create
	}
	builtinsMu.Unlock()
	return f
}

var (
	globalFactory     *DefaultFactory
	globalFactoryOnce sync.Once
)

// GlobalFactory returns the process-wide factory.
func GlobalFactory() *DefaultFactory {
	globalFactoryOnce.Do(func() { globalFactory = NewDefaultFactory() })
	return globalFactory
}

// Register adds or replaces a calculator constructor.
func (f *DefaultFactory) Register(name string, create func() Calculator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creators[name] = create
	delete(f.cache, name)
}

// Get returns the calculator registered under name.
//
// Parameters:
//   - name: The registry name, e.g. "fast".
//
// Returns:
//   - Calculator: The calculator instance.
//   - error: An error listing the available names if name is unknown.
func (f *DefaultFactory) Get(name string) (Calculator, error) {
	f.mu.RLock()
	if c, ok := f.cache[name]; ok {
		f.mu.RUnlock()
		return c, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.cache[name]; ok {
		return c, nil
	}
	create, ok := f.creators[name]
	if !ok {
		return nil, fmt.Errorf("unknown calculator %q (available: %v)", name, f.listLocked())
	}
	c := create()
	f.cache[name] = c
	return c, nil
}

// MustGet is Get that panics on an unknown name. It is meant for names known
// at compile time.
func (f *DefaultFactory) MustGet(name string) Calculator {
	c, err := f.Get(name)
	if err != nil {
		panic(err)
	}
	return c
}

// List returns the registered names in sorted order.
func (f *DefaultFactory) List() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.listLocked()
}

func (f *DefaultFactory) listLocked() []string {
	names := make([]string, 0, len(f.creators))
	for name := range f.creators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
