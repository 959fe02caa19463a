// Package fql implements the front end of the FQL compiler: the lexer and
// the pipe-stage parser.
//
// PIPELINE:
//
//	[FQL text] → Tokenize → []Token → Parse → *ast.Query → fetchxml.ToFetchXML
//
// Both stages are pure. They never log, never perform I/O and keep no state
// between calls, so they are safe for concurrent use.
//
// ALIAS ROUTING:
//
// Each entity of a query (the main entity and every join target) lives in
// an arena slot. Aliases map to slot indices. Stage output written as
// alias.field is recorded with its alias and routed after the pipeline has
// been read, which makes routing independent of stage order:
//
//	.account | c.fullname | join(.contact as c on c.contactid -> account.primarycontactid)
//
// puts fullname on the contact link-entity even though the attribute stage
// appears before the join. Unqualified fields (.field) target the entity
// current for the stage: the main entity at the top level, the join target
// inside join(...).
//
// ERRORS:
//
// Tokenize returns *LexError and Parse returns *ParseError. Both render as
// a positioned message followed by the offending source line, a caret, and
// a hint for a closed set of common mistakes (= for ==, unquoted strings,
// unknown stages and options).
package fql
