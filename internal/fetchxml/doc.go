// Package fetchxml lowers a parsed FQL query tree to FetchXML.
//
// The emitter walks the tree once and writes elements in a fixed order;
// attribute order inside each element is fixed as well, so the output is
// byte-identical for identical input. That property is what the compile
// cache and golden tests rely on.
//
// Primary keys for count() without a field are inferred as "<entity>id"
// unless overridden with WithPrimaryKeys. The formatted option is parsed
// but has no FetchXML rendering.
package fetchxml
