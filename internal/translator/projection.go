package translator

import (
	"github.com/roach88/rmlplan/internal/operator"
	"github.com/roach88/rmlplan/internal/rml"
)

// projectedAttributes is the set of attributes a triples map references:
// those of its subject, graph, predicate and object maps. A
// parent-referencing object map contributes its child join keys instead of
// its own attributes, since its value comes from the parent.
func projectedAttributes(tm rml.TriplesMap) operator.AttributeSet {
	attrs := tm.SubjectMap.Attributes()
	if tm.GraphMap != nil {
		attrs.Union(tm.GraphMap.Attributes())
	}

	for _, pom := range tm.POMs {
		for _, pm := range pom.PredicateMaps {
			attrs.Union(pm.Attributes())
		}
		for _, om := range pom.ObjectMaps {
			if om.HasParent() {
				if om.JoinCondition != nil {
					attrs.Add(om.JoinCondition.ChildAttributes...)
				}
				continue
			}
			attrs.Union(om.Attributes())
		}
	}
	return attrs
}

// projectionFor selects the attributes the source must yield. Attributes
// reached through a field rename are projected under their source name; the
// Rename that follows restores the referenced name.
func projectionFor(tm rml.TriplesMap) operator.Projection {
	referenced := projectedAttributes(tm)
	attrs := operator.NewAttributeSet()
	for _, a := range referenced.Sorted() {
		attrs.Add(tm.LogicalSource.SourceAttribute(a))
	}
	return operator.Projection{Attributes: attrs}
}
