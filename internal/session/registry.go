package session

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/san-kum/bmiview/internal/bmi"
	"github.com/san-kum/bmiview/internal/bmihttp"
	"github.com/san-kum/bmiview/internal/landscape"
)

// BackendOptions carries what a backend constructor may need.
type BackendOptions struct {
	Address string
	Timeout time.Duration
	Logger  *zap.Logger
}

type Registry struct {
	backends map[string]func(BackendOptions) (bmi.BMI, error)
}

func NewRegistry() *Registry {
	r := &Registry{
		backends: make(map[string]func(BackendOptions) (bmi.BMI, error)),
	}

	r.backends["landscape"] = func(o BackendOptions) (bmi.BMI, error) {
		return landscape.New(landscape.WithLogger(o.Logger)), nil
	}
	r.backends["http"] = func(o BackendOptions) (bmi.BMI, error) {
		if o.Address == "" {
			return nil, fmt.Errorf("http backend needs an address")
		}
		return bmihttp.NewClient(o.Address,
			bmihttp.WithTimeout(o.Timeout),
			bmihttp.WithClientLogger(o.Logger),
		), nil
	}

	return r
}

// Register adds or replaces a backend constructor.
func (r *Registry) Register(name string, fn func(BackendOptions) (bmi.BMI, error)) {
	r.backends[name] = fn
}

func (r *Registry) GetBackend(name string, o BackendOptions) (bmi.BMI, error) {
	fn, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("unknown backend: %s", name)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return fn(o)
}

func (r *Registry) ListBackends() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
