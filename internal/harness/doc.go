// Package harness runs FQL conformance suites.
//
// # Suite Format
//
// Suites are YAML files:
//
//	name: joins
//	description: "Alias routing into link-entities"
//	primary_keys:
//	  activitypointer: activityid
//	cases:
//	  - name: inner_join
//	    fql: |
//	      .account | join(.contact as c on c.contactid -> primarycontactid)
//	    expect:
//	      contains:
//	        - '<link-entity name="contact" alias="c"'
//	  - name: bad_alias
//	    fql: .account | x.name
//	    expect:
//	      error: unknown_alias
//
// Unknown fields are rejected. An expectation is one of:
//
//   - xml: the exact compact document
//   - contains / not_contains: fragments that must (not) appear
//   - error: the expected error kind; the case must fail to compile
//
// A case with no expectation only has to compile.
//
// # Golden Snapshots
//
// Every case also renders a snapshot: the indented document, or
// "error: <kind>" for a failed compilation. RunWithGolden compares the
// snapshots with goldie in tests; Run does the same against a plain
// directory when Options.GoldenDir is set, which is what `fql test` uses.
package harness
