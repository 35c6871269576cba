package pipeline

import (
	"context"
	"fmt"

	v1 "github.com/aevon-lab/trackpipe/internal/api/v1"
)

// Super property changes are ordered with compositions on the task queue but
// not held back by the consent gate.

func (p *Pipeline) RegisterSuperProperties(properties *v1.Properties) {
	add := properties.Clone()
	p.queue.Submit("super register", func(ctx context.Context) error {
		if err := p.sanitizer.ValidatePropertyTypes(add); err != nil {
			return fmt.Errorf("register super properties: %w", err)
		}
		return p.super.Register(ctx, add)
	})
}

func (p *Pipeline) UnregisterSuperProperty(key string) {
	p.queue.Submit("super unregister", func(ctx context.Context) error {
		return p.super.Unregister(ctx, key)
	})
}

func (p *Pipeline) ClearSuperProperties() {
	p.queue.Submit("super clear", func(ctx context.Context) error {
		return p.super.Clear(ctx)
	})
}

// SuperProperties returns a copy of the persisted super properties.
func (p *Pipeline) SuperProperties() *v1.Properties {
	return p.super.Snapshot()
}
