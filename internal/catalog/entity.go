// Package catalog defines the canonical entity produced by the mapping
// pipeline and the sink it is handed to.
package catalog

// Entity is the normalized record derived from one provider payload by one
// mapping rule. Instances are transient: produced, validated, handed to the
// sink, never retained.
type Entity struct {
	Identifier string
	Title      string
	Blueprint  string
	Properties map[string]interface{}
	Relations  map[string]interface{}
}

// Valid reports whether the entity carries the identity fields the sink
// requires. Entities failing this are discarded upstream, never persisted.
func (e *Entity) Valid() bool {
	return e.Identifier != "" && e.Title != "" && e.Blueprint != ""
}
