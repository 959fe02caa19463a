// Package ast provides the syntax tree produced by the FQL parser and
// consumed by the FetchXML emitter.
//
// ARCHITECTURE:
//
// The AST sits between the FQL front end and the FetchXML backend:
//
//	[FQL text] → [tokens] → [ast.Query] → [FetchXML]
//
// A Query owns exactly one root EntityRef. Every join target is itself an
// EntityRef, so joins nest recursively through JoinClause and EntityRef is
// the single recursive unit of the tree. Each EntityRef is owned exactly
// once by its parent; the parser reaches nodes by alias only transiently
// while building the tree.
//
// SEALED INTERFACES:
//
// AttributeRef and Literal are sealed interfaces using the marker method
// pattern. Only types in this package implement them, which keeps type
// switches in the emitter exhaustive:
//
//	switch v := lit.(type) {
//	case NumberLiteral:
//	case StringLiteral:
//	case BoolLiteral:
//	case NullLiteral:
//	case DateMacro:
//	}
//
// OUTPUT ORDER:
//
// Within every entity node the emitter writes, in order: projected
// attributes, group-by and aggregate attributes, the filter conjunction, the
// having conjunction, nested joins, then order clauses. The AST keeps each
// of these in its own list so the order is a property of the emitter, not of
// the order in which the parser encountered the stages.
//
// The tree is immutable once Parse returns; nothing in this package mutates
// a Query after construction.
package ast
