package service

import (
	"github.com/straddle-io/straddle/errs"
)

// Builder pairs a config predicate with a service factory.
type Builder[Cfg, Req, Resp any] interface {
	Accept(cfg Cfg) bool
	Build(cfg Cfg) (Service[Req, Resp], error)
}

// BuilderManager owns a list of builders and assembles configurations into a
// composite Select. Split, when set, decomposes a multi-resource config that
// no single builder accepts into per-resource configs.
type BuilderManager[Cfg, Req, Resp any] struct {
	builders []Builder[Cfg, Req, Resp]
	split    func(Cfg) []Cfg
}

// NewBuilderManager constructs an empty registry.
func NewBuilderManager[Cfg, Req, Resp any]() *BuilderManager[Cfg, Req, Resp] {
	return &BuilderManager[Cfg, Req, Resp]{}
}

// WithSplit installs the resource-splitting fallback.
func (m *BuilderManager[Cfg, Req, Resp]) WithSplit(split func(Cfg) []Cfg) *BuilderManager[Cfg, Req, Resp] {
	m.split = split
	return m
}

// Register appends a builder. Registration order is resolution order.
func (m *BuilderManager[Cfg, Req, Resp]) Register(b Builder[Cfg, Req, Resp]) {
	if b != nil {
		m.builders = append(m.builders, b)
	}
}

// FindBuilder resolves the first builder accepting the config.
func (m *BuilderManager[Cfg, Req, Resp]) FindBuilder(cfg Cfg) (Builder[Cfg, Req, Resp], bool) {
	for _, b := range m.builders {
		if b.Accept(cfg) {
			return b, true
		}
	}
	return nil, false
}

// Build constructs one service for the config, splitting it per resource
// when no single builder accepts the whole.
func (m *BuilderManager[Cfg, Req, Resp]) Build(cfg Cfg) ([]Service[Req, Resp], error) {
	if b, ok := m.FindBuilder(cfg); ok {
		svc, err := b.Build(cfg)
		if err != nil {
			return nil, err
		}
		return []Service[Req, Resp]{svc}, nil
	}
	if m.split != nil {
		if parts := m.split(cfg); len(parts) > 1 {
			var services []Service[Req, Resp]
			for _, part := range parts {
				b, ok := m.FindBuilder(part)
				if !ok {
					return nil, errs.New("service", errs.CodeInvalid,
						errs.WithMessage("no builder accepts config part"))
				}
				svc, err := b.Build(part)
				if err != nil {
					return nil, err
				}
				services = append(services, svc)
			}
			return services, nil
		}
	}
	return nil, errs.New("service", errs.CodeInvalid,
		errs.WithMessage("no builder accepts config"))
}

// BuildSelect assembles every config into one composite Select. A config no
// builder can serve is a fatal configuration error.
func (m *BuilderManager[Cfg, Req, Resp]) BuildSelect(cfgs []Cfg) (*Select[Req, Resp], error) {
	var children []Service[Req, Resp]
	for _, cfg := range cfgs {
		services, err := m.Build(cfg)
		if err != nil {
			return nil, err
		}
		children = append(children, services...)
	}
	return NewSelect(children...), nil
}
