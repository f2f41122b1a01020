package operator

import (
	"fmt"
	"sort"
	"sync"

	"github.com/leeforge/imagevise/errors"
)

// ImageConstructor builds an image operator from its parameters.
type ImageConstructor func(params Params) (ImageOperator, error)

// MetadataConstructor builds a metadata operator from its parameters.
type MetadataConstructor func(params Params) (MetadataOperator, error)

// Entry is a registered operator.
type Entry struct {
	Name string
	Kind Kind

	newImage    ImageConstructor
	newMetadata MetadataConstructor
}

// New builds an instance and stamps the entry name on it.
func (e Entry) New(params Params) (Operator, error) {
	var (
		op  Operator
		err error
	)
	switch e.Kind {
	case KindMetadata:
		op, err = e.newMetadata(params)
	default:
		op, err = e.newImage(params)
	}
	if err != nil {
		if appErr := errors.FromError(err); appErr.Type != errors.ErrorTypeUnknown {
			return nil, appErr
		}
		return nil, errors.NewInvalidParameter(e.Name, err.Error()).WithInnerError(err)
	}
	if named, ok := op.(interface{ SetName(string) }); ok {
		named.SetName(e.Name)
	}
	return op, nil
}

// Registry 算子注册中心
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// NewDefaultRegistry returns a registry with every built-in operator.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterBuiltins(r)
	return r
}

// RegisterImage 注册图像算子
func (r *Registry) RegisterImage(name string, ctor ImageConstructor) error {
	if ctor == nil {
		return fmt.Errorf("operator %s has no constructor", name)
	}
	return r.register(Entry{Name: name, Kind: KindImage, newImage: ctor})
}

// RegisterMetadata 注册元数据算子
func (r *Registry) RegisterMetadata(name string, ctor MetadataConstructor) error {
	if ctor == nil {
		return fmt.Errorf("operator %s has no constructor", name)
	}
	return r.register(Entry{Name: name, Kind: KindMetadata, newMetadata: ctor})
}

func (r *Registry) register(e Entry) error {
	if e.Name == "" {
		return fmt.Errorf("operator name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[e.Name]; exists {
		return fmt.Errorf("operator %s already registered", e.Name)
	}
	r.entries[e.Name] = e
	return nil
}

// Resolve 获取算子
func (r *Registry) Resolve(name string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.entries[name]
	if !exists {
		return Entry{}, errors.NewInvalidRequest(fmt.Sprintf("Unknown operator %s", name)).
			WithDetail("operator", name)
	}
	return e, nil
}

// Build resolves name and constructs an operator from params.
func (r *Registry) Build(name string, params Params) (Operator, error) {
	e, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	return e.New(params)
}

// Names 列出所有已注册算子（已排序）
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
