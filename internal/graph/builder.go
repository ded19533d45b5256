package graph

import (
	"strings"

	"go.uber.org/zap"

	"github.com/Icinga/icingaweb2-sub007/internal/model"
)

// Stats summarizes one build
type Stats struct {
	Registered int
	Attached   int
	Deferred   int
	Dropped    int
}

// pending is a wiring attempt that could not resolve when its definition was read
type pending struct {
	record   *model.Record
	kind     model.Kind
	relation model.Relation
	property string
}

// Builder inserts records into a graph and wires group memberships and
// attached definitions onto their base records.
type Builder struct {
	graph    *model.Graph
	deferred []pending
	stats    Stats
	logger   *zap.Logger
}

// NewBuilder creates a builder over g
func NewBuilder(g *model.Graph, logger *zap.Logger) *Builder {
	return &Builder{
		graph:  g,
		logger: logger,
	}
}

// Graph returns the graph being built
func (b *Builder) Graph() *model.Graph {
	return b.graph
}

// Stats returns counters of the build so far
func (b *Builder) Stats() Stats {
	return b.stats
}

// Register inserts a closed definition. Definitions without an identifier
// are not addressable and only take part in wiring.
func (b *Builder) Register(r *model.Record) {
	b.graph.EnsureType(r.Type)

	if name, ok := model.Identifier(r.Type, r.Attr); ok {
		r.Name = name
		b.graph.Put(r)
		b.stats.Registered++
	}

	b.WireMembership(r)
}

// WireMembership wires r onto its base records, or queues it for the
// deferred pass when any reference cannot be resolved yet.
func (b *Builder) WireMembership(r *model.Record) {
	kind, relation, property := model.RelationOf(r.Type)
	if relation == model.RelationNone {
		return
	}

	p := pending{record: r, kind: kind, relation: relation, property: property}
	if !b.graph.HasType(kind.BaseType()) || !b.resolvable(p) {
		b.deferred = append(b.deferred, p)
		b.stats.Deferred++
		return
	}
	b.wire(p)
}

// ProcessDeferred retries every queued wiring exactly once. References that
// still do not resolve are dropped with a warning.
func (b *Builder) ProcessDeferred() {
	queue := b.deferred
	b.deferred = nil

	for _, p := range queue {
		b.wire(p)
	}
}

// ConnectHostServices links every service to its host and back
func (b *Builder) ConnectHostServices() {
	for _, name := range b.graph.Names("service") {
		svc, _ := b.graph.Get("service", name)
		hostName, _ := svc.Attr("host_name")
		host, ok := b.graph.Get("host", hostName)
		if !ok {
			b.logger.Warn("Service references unknown host",
				zap.String("service", name),
				zap.String("host", hostName))
			continue
		}
		svc.Link("host", host.Handle())
		host.Link("services", svc.Handle())
	}
}

// Finish runs the deferred pass and the host/service connection
func (b *Builder) Finish() *model.Graph {
	b.ProcessDeferred()
	b.ConnectHostServices()

	b.logger.Debug("Object graph built",
		zap.Int("registered", b.stats.Registered),
		zap.Int("attached", b.stats.Attached),
		zap.Int("deferred", b.stats.Deferred),
		zap.Int("dropped", b.stats.Dropped))

	return b.graph
}

func (b *Builder) resolvable(p pending) bool {
	base := p.kind.BaseType()
	if p.relation == model.RelationAttached {
		owner, ok := model.Identifier(base, p.record.Attr)
		if !ok {
			return false
		}
		_, ok = b.graph.Get(base, owner)
		return ok
	}

	for _, name := range memberNames(p.record, p.kind) {
		if _, ok := b.graph.Get(base, name); !ok {
			return false
		}
	}
	return true
}

func (b *Builder) wire(p pending) {
	base := p.kind.BaseType()

	if p.relation == model.RelationAttached {
		owner, ok := model.Identifier(base, p.record.Attr)
		if !ok {
			b.drop(p, "")
			return
		}
		target, ok := b.graph.Get(base, owner)
		if !ok {
			b.drop(p, owner)
			return
		}
		target.AddChild(p.property, p.record)
		b.stats.Attached++
		return
	}

	for _, name := range memberNames(p.record, p.kind) {
		member, ok := b.graph.Get(base, name)
		if !ok {
			b.drop(p, name)
			continue
		}
		p.record.Link(base, member.Handle())
		member.AddMembership(p.property, p.record.Name)
	}
}

func (b *Builder) drop(p pending, reference string) {
	b.stats.Dropped++
	b.logger.Warn("Dropping unresolved reference",
		zap.String("type", p.record.Type),
		zap.String("identifier", p.record.Name),
		zap.String("reference", reference))
}

// memberNames splits the members attribute. Service groups list members as
// host,service pairs.
func memberNames(r *model.Record, k model.Kind) []string {
	raw, _ := r.Attr("members")
	var parts []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}

	if k != model.KindService {
		return parts
	}

	names := make([]string, 0, len(parts)/2)
	for i := 0; i+1 < len(parts); i += 2 {
		names = append(names, model.ServiceIdentifier(parts[i], parts[i+1]))
	}
	return names
}
