package typed

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// registry holds every registered document type, keyed both by Go type and by
// collection name. All access is through the package-level functions.
type registry struct {
	mu           sync.RWMutex
	byType       map[reflect.Type]*ModelInfo
	byCollection map[string]*ModelInfo
}

var globalRegistry = &registry{
	byType:       make(map[reflect.Type]*ModelInfo),
	byCollection: make(map[string]*ModelInfo),
}

// Register extracts and stores the model for a document type. Registering the
// same type twice is a no-op; registering a different type under an already
// claimed collection name is an error.
func Register[T Doc]() error {
	var zero T
	t := reflect.TypeOf(zero)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return fmt.Errorf("cannot register a nil document type")
	}

	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	if _, ok := globalRegistry.byType[t]; ok {
		return nil
	}

	m, err := ExtractModelInfo(zero)
	if err != nil {
		return fmt.Errorf("registering %s: %w", t.Name(), err)
	}
	if prev, ok := globalRegistry.byCollection[m.Collection]; ok {
		return fmt.Errorf("collection %q is already registered to %s", m.Collection, prev.TypeName)
	}
	globalRegistry.byType[t] = m
	globalRegistry.byCollection[m.Collection] = m
	return nil
}

// MustRegister is like Register but panics on error. Intended for package
// init blocks.
func MustRegister[T Doc]() {
	if err := Register[T](); err != nil {
		panic(err)
	}
}

// ModelFor returns the registered model for a document type.
func ModelFor[T Doc]() (*ModelInfo, error) {
	var zero T
	t := reflect.TypeOf(zero)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	m, ok := globalRegistry.byType[t]
	if !ok {
		name := "<nil>"
		if t != nil {
			name = t.Name()
		}
		return nil, &NotRegisteredError{TypeName: name}
	}
	return m, nil
}

// ModelForCollection returns the registered model claiming a collection name.
func ModelForCollection(name string) (*ModelInfo, error) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	m, ok := globalRegistry.byCollection[name]
	if !ok {
		return nil, &NotRegisteredError{TypeName: name}
	}
	return m, nil
}

// RegisteredCollections returns the sorted collection names of every
// registered document type.
func RegisteredCollections() []string {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	names := make([]string, 0, len(globalRegistry.byCollection))
	for name := range globalRegistry.byCollection {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ClearRegistry removes every registered type. Test helper.
func ClearRegistry() {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	globalRegistry.byType = make(map[reflect.Type]*ModelInfo)
	globalRegistry.byCollection = make(map[string]*ModelInfo)
}
