package ast

// Walk visits e and every nested join target depth-first, in emission
// order. Returning false from fn stops the walk.
func Walk(e *EntityRef, fn func(e *EntityRef, depth int) bool) {
	walk(e, 0, fn)
}

func walk(e *EntityRef, depth int, fn func(*EntityRef, int) bool) bool {
	if e == nil {
		return true
	}
	if !fn(e, depth) {
		return false
	}
	for _, j := range e.Joins {
		if !walk(j.Entity, depth+1, fn) {
			return false
		}
	}
	return true
}

// IsAggregate reports whether any entity in the query carries an
// aggregation.
func (q *Query) IsAggregate() bool {
	found := false
	Walk(q.Entity, func(e *EntityRef, _ int) bool {
		if e.Aggregation != nil {
			found = true
			return false
		}
		return true
	})
	return found
}
