package translator

import "github.com/roach88/rmlplan/internal/rml"

// indexedObject is an object map with its position in the original POM.
type indexedObject struct {
	idx int
	om  rml.ObjectMap
}

// indexedPOM is a POM, or the part of one, with its position in the triples
// map.
type indexedPOM struct {
	idx        int
	predicates []rml.PredicateMap
	objects    []indexedObject
}

// partitionPOMs splits POMs into join-bearing and plain ones. A POM mixing
// parent-referencing and plain object maps keeps the former; the latter are
// lifted into a plain POM with the same predicates and the same index,
// appended after the POMs that were plain to begin with.
func partitionPOMs(poms []rml.PredicateObjectMap) (joins, plain []indexedPOM) {
	var lifted []indexedPOM

	for i, pom := range poms {
		var withParent, without []indexedObject
		for j, om := range pom.ObjectMaps {
			if om.HasParent() {
				withParent = append(withParent, indexedObject{idx: j, om: om})
			} else {
				without = append(without, indexedObject{idx: j, om: om})
			}
		}

		if len(withParent) == 0 {
			plain = append(plain, indexedPOM{idx: i, predicates: pom.PredicateMaps, objects: without})
			continue
		}

		joins = append(joins, indexedPOM{idx: i, predicates: pom.PredicateMaps, objects: withParent})
		if len(without) > 0 {
			lifted = append(lifted, indexedPOM{idx: i, predicates: pom.PredicateMaps, objects: without})
		}
	}

	return joins, append(plain, lifted...)
}
