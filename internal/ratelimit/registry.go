package ratelimit

import (
	"context"

	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/domain"
)

// Registry owns one independent limiter per resource class. Classes are
// fixed at construction; an unknown class uses the default class's
// limiter rather than failing.
type Registry struct {
	limiters map[domain.ResourceClass]*Limiter
	def      domain.ResourceClass
}

func NewRegistry(configs map[domain.ResourceClass]Config, def domain.ResourceClass) *Registry {
	limiters := make(map[domain.ResourceClass]*Limiter, len(configs))
	for class, cfg := range configs {
		limiters[class] = New(cfg)
	}
	if _, ok := limiters[def]; !ok {
		limiters[def] = New(Config{MaxRequests: 1, Window: 0})
	}
	return &Registry{limiters: limiters, def: def}
}

func (r *Registry) limiter(class domain.ResourceClass) *Limiter {
	if l, ok := r.limiters[class]; ok {
		return l
	}
	return r.limiters[r.def]
}

// Acquire blocks until the class's limiter admits the caller.
func (r *Registry) Acquire(ctx context.Context, class domain.ResourceClass) error {
	return r.limiter(class).Acquire(ctx)
}

func (r *Registry) Stats(class domain.ResourceClass) Stats {
	return r.limiter(class).Stats()
}

func (r *Registry) Reset(class domain.ResourceClass) {
	r.limiter(class).Reset()
}

// Classes lists the configured resource classes.
func (r *Registry) Classes() []domain.ResourceClass {
	out := make([]domain.ResourceClass, 0, len(r.limiters))
	for class := range r.limiters {
		out = append(out, class)
	}
	return out
}
