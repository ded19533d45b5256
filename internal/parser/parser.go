package parser

import (
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/Icinga/icingaweb2-sub007/internal/errors"
	"github.com/Icinga/icingaweb2-sub007/internal/graph"
	"github.com/Icinga/icingaweb2-sub007/internal/model"
)

const definePrefix = "define "

// Stats summarizes one parse call
type Stats struct {
	Lines      int
	Objects    int
	Directives int
	Graph      graph.Stats

	StatusBlocks  int
	SkippedBlocks int
	ListItems     int
}

// Parser reads objects files into a graph and overlays status files onto it
type Parser struct {
	logger *zap.Logger
}

// NewParser creates a parser
func NewParser(logger *zap.Logger) *Parser {
	return &Parser{logger: logger}
}

// ParseObjects reads an objects file. On error no graph is returned.
func (p *Parser) ParseObjects(r io.Reader) (*model.Graph, Stats, error) {
	var stats Stats
	lex := newLexer(r, bodyAttributes)
	builder := graph.NewBuilder(model.NewGraph(), p.logger)

	var current *model.Record
	skipping := false

	for {
		tok, err := lex.NextToken()
		if err != nil {
			return nil, stats, errors.ReadFailed("objects file", err)
		}

		switch tok.kind {
		case tokEOF:
			stats.Lines = lex.Line()
			if lex.InBlock() {
				return nil, stats, errors.UnexpectedEOF("objects file", lex.Line())
			}
			builder.Finish()
			stats.Graph = builder.Stats()
			return builder.Graph(), stats, nil

		case tokDirective:
			stats.Directives++
			p.logger.Warn("Ignoring directive outside of a definition",
				zap.String("directive", tok.text),
				zap.Int("line", tok.line))

		case tokHeader:
			typeName, ok := definitionType(tok.text)
			if !ok {
				stats.Directives++
				skipping = true
				p.logger.Warn("Ignoring block that is not a definition",
					zap.String("header", tok.text),
					zap.Int("line", tok.line))
				continue
			}
			current = model.NewRecord(typeName)

		case tokAttribute:
			if skipping || tok.key == "" {
				continue
			}
			current.Set(tok.key, tok.value)

		case tokClose:
			if skipping {
				skipping = false
				continue
			}
			builder.Register(current)
			stats.Objects++
			current = nil
		}
	}
}

// ParseRuntimeState overlays a status file onto g. Every block is validated
// before any record is touched, so a failed parse leaves g unchanged.
func (p *Parser) ParseRuntimeState(r io.Reader, g *model.Graph) (*model.Graph, Stats, error) {
	var stats Stats
	if g == nil || g.Empty() {
		return nil, stats, errors.NoObjectsData()
	}

	lex := newLexer(r, bodyRaw)
	var staged []attachment

	var (
		stateType string
		header    int
		body      []string
		skipping  bool
	)

	for {
		tok, err := lex.NextToken()
		if err != nil {
			return nil, stats, errors.ReadFailed("status file", err)
		}

		switch tok.kind {
		case tokEOF:
			stats.Lines = lex.Line()
			if lex.InBlock() {
				return nil, stats, errors.UnexpectedEOF("status file", lex.Line())
			}
			apply(g, staged, &stats)
			return g, stats, nil

		case tokDirective:
			stats.Directives++
			p.logger.Warn("Ignoring line outside of a status block",
				zap.String("line_text", tok.text),
				zap.Int("line", tok.line))

		case tokHeader:
			stateType = tok.text
			header = tok.line
			body = body[:0]
			kind := model.Classify(stateType)
			skipping = kind != model.KindHost && kind != model.KindService
			if skipping {
				stats.SkippedBlocks++
				p.logger.Debug("Skipping status block",
					zap.String("state_type", stateType),
					zap.Int("line", tok.line))
			}

		case tokRaw:
			if !skipping {
				body = append(body, tok.text)
			}

		case tokClose:
			if skipping {
				skipping = false
				continue
			}
			a, err := resolveBlock(g, stateType, strings.Join(body, "\n"), header)
			if err != nil {
				return nil, stats, err
			}
			staged = append(staged, a)
			stats.StatusBlocks++
		}
	}
}

// attachment is a validated status block waiting to be applied
type attachment struct {
	record   *model.Record
	property string
	state    *model.RuntimeState
}

func resolveBlock(g *model.Graph, stateType, raw string, line int) (attachment, error) {
	kind := model.Classify(stateType)
	base := kind.BaseType()

	state := model.NewRuntimeState(stateType, raw)
	name, ok := model.Identifier(base, func(k string) (string, bool) {
		v, err := state.Get(k)
		return v, err == nil
	})
	if !ok {
		return attachment{}, errors.MalformedStatusBlock(stateType, "missing identifier", line)
	}

	record, ok := g.Get(base, name)
	if !ok {
		return attachment{}, errors.UnknownObject(name, line)
	}

	state.Owner = record.Handle()
	return attachment{
		record:   record,
		property: model.Property(stateType, kind),
		state:    state,
	}, nil
}

// apply attaches staged blocks. The list properties of every host and
// service are cleared first: a status file lists all comments and downtimes,
// so a re-read replaces the previous items, including on records that have
// none left.
func apply(g *model.Graph, staged []attachment, stats *Stats) {
	for _, typeName := range g.Types() {
		if kind := model.Classify(typeName); kind != model.KindHost && kind != model.KindService {
			continue
		}
		for _, name := range g.Names(typeName) {
			if rec, ok := g.Get(typeName, name); ok && len(rec.Lists) > 0 {
				rec.Lists = make(map[string][]*model.RuntimeState)
			}
		}
	}

	for _, a := range staged {
		if a.property == "status" {
			a.record.Status = a.state
			continue
		}
		if a.record.Lists == nil {
			a.record.Lists = make(map[string][]*model.RuntimeState)
		}
		a.record.Lists[a.property] = append(a.record.Lists[a.property], a.state)
		stats.ListItems++
	}
}

// definitionType extracts <type> from "define <type>"
func definitionType(header string) (string, bool) {
	if !strings.HasPrefix(header, definePrefix) {
		return "", false
	}
	typeName := strings.TrimSpace(header[len(definePrefix):])
	return typeName, typeName != ""
}
