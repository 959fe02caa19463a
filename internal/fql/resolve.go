package fql

import (
	"sort"
	"strings"

	"github.com/roach88/fetchql/internal/ast"
)

// lookup returns the arena index an alias prefix denotes. The main
// entity's logical name works as an implicit alias unless an explicit
// alias shadows it.
func (p *parser) lookup(prefix string) (int, bool) {
	if idx, ok := p.aliases[prefix]; ok {
		return idx, true
	}
	if prefix == p.nodes[0].ref.Name {
		return 0, true
	}
	return 0, false
}

func (p *parser) unknownAlias(prefix string, tok Token) *ParseError {
	return p.errorf(ErrUnknownAlias, tok, p.aliasHint(), "unknown alias %q", prefix)
}

func (p *parser) aliasHint() string {
	known := make([]string, 0, len(p.aliases)+1)
	for alias := range p.aliases {
		known = append(known, alias)
	}
	if root := p.nodes[0].ref; root.Alias == "" {
		known = append(known, root.Name)
	}
	sort.Strings(known)
	return "known aliases: " + strings.Join(known, ", ")
}

// resolve attaches joins to their parents, then routes every recorded
// placement to its target entity in source order.
func (p *parser) resolve() error {
	if err := p.resolveJoins(); err != nil {
		return err
	}
	for _, pl := range p.placements {
		target := pl.scope
		if pl.prefix != "" {
			idx, ok := p.lookup(pl.prefix)
			if !ok {
				return p.unknownAlias(pl.prefix, pl.tok)
			}
			target = idx
		}
		if err := pl.apply(target); err != nil {
			return err
		}
	}
	p.query.Entity = p.nodes[0].ref
	return nil
}

// resolveJoins picks each join's parent from the right operand of ->,
// rejects self links and cycles, and nests link-entities in source order.
func (p *parser) resolveJoins() error {
	for idx, n := range p.nodes {
		j := n.join
		if j == nil {
			continue
		}
		j.parent = j.scope
		if j.toPrefix != "" {
			parent, ok := p.lookup(j.toPrefix)
			if !ok {
				return p.unknownAlias(j.toPrefix, j.toTok)
			}
			j.parent = parent
		}
		if j.parent == idx {
			return p.errorf(ErrInvalidArgument, j.toTok, "link to a field of another entity",
				"join %q cannot link to itself", n.ref.Alias)
		}
	}

	for idx, n := range p.nodes {
		if n.join == nil {
			continue
		}
		if p.reachesRoot(idx) {
			continue
		}
		return p.errorf(ErrInvalidArgument, n.join.keyword, "every join must link back to the main entity",
			"join %q is part of a cycle", n.ref.Alias)
	}

	for _, n := range p.nodes {
		j := n.join
		if j == nil {
			continue
		}
		parent := p.nodes[j.parent].ref
		parent.Joins = append(parent.Joins, ast.JoinClause{
			Entity:   n.ref,
			From:     j.from,
			To:       j.to,
			LinkType: j.linkType,
		})
	}
	return nil
}

// reachesRoot follows parent links from idx. A chain longer than the arena
// has looped.
func (p *parser) reachesRoot(idx int) bool {
	for steps := 0; steps <= len(p.nodes); steps++ {
		j := p.nodes[idx].join
		if j == nil {
			return true
		}
		idx = j.parent
	}
	return false
}
