package translator

import (
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/roach88/rmlplan/internal/operator"
	"github.com/roach88/rmlplan/internal/plan"
	"github.com/roach88/rmlplan/internal/rml"
)

// fragment is the Source -> Project chain built for one triples map, with a
// trailing Rename when its source renames fields.
type fragment struct {
	index int
	tm    rml.TriplesMap
	plan  plan.Processed
}

// fragmentLookup maps triples map identifiers to their fragments. It is
// built by the first pass and read by the second.
type fragmentLookup map[string]fragment

// Translate compiles doc into an operator plan. The returned Init handle
// exposes the whole graph; every triples map contributes one fragment and
// one sink per output branch.
func Translate(doc *rml.Document) (plan.Init, error) {
	root := plan.New()
	if doc == nil {
		return root, nil
	}

	lookup, order, err := buildFragments(root, doc)
	if err != nil {
		return plan.Init{}, err
	}

	for _, frag := range order {
		if err := translateTriplesMap(frag, lookup); err != nil {
			return plan.Init{}, err
		}
	}

	slog.Debug("translated document",
		"triples_maps", len(doc.TriplesMaps),
		"nodes", root.Graph().NodeCount(),
		"edges", root.Graph().EdgeCount(),
	)
	return root, nil
}

// buildFragments is the first pass.
func buildFragments(root plan.Init, doc *rml.Document) (fragmentLookup, []fragment, error) {
	lookup := make(fragmentLookup, len(doc.TriplesMaps))
	order := make([]fragment, 0, len(doc.TriplesMaps))

	for i, tm := range doc.TriplesMaps {
		projected, err := root.Source(tm.LogicalSource.ToSource()).
			Apply(projectionFor(tm), plan.PrefixProjection)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "triples map %q", tm.Identifier)
		}
		if rename, ok := renameFor(tm.LogicalSource); ok {
			projected, err = projected.Apply(rename, plan.PrefixRename)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "triples map %q", tm.Identifier)
			}
		}

		frag := fragment{index: i, tm: tm, plan: projected}
		lookup[tm.Identifier] = frag
		order = append(order, frag)
	}
	return lookup, order, nil
}

// translateTriplesMap is the second pass for one triples map: the non-join
// branch, then one join branch per parent-referencing object map.
func translateTriplesMap(frag fragment, lookup fragmentLookup) error {
	tm := frag.tm
	if err := checkJoins(tm); err != nil {
		return err
	}

	prefix := prefixFor(frag.index)
	joinPOMs, plainPOMs := partitionPOMs(tm.POMs)

	slog.Debug("translating triples map",
		"triples_map", tm.Identifier,
		"prefix", prefix,
		"plain_poms", len(plainPOMs),
		"join_poms", len(joinPOMs),
	)

	if len(plainPOMs) > 0 || len(tm.SubjectMap.Classes) > 0 {
		if err := addPlainBranch(frag, prefix, plainPOMs); err != nil {
			return err
		}
	}

	for _, pom := range joinPOMs {
		for _, om := range pom.objects {
			if err := addJoinBranch(frag, prefix, pom, om, lookup); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkJoins enforces that a parent reference and a join condition are set
// together.
func checkJoins(tm rml.TriplesMap) error {
	for pomIdx, pom := range tm.POMs {
		for omIdx, om := range pom.ObjectMaps {
			switch {
			case om.HasParent() && om.JoinCondition == nil:
				return newTranslationError(ErrCodeMalformedJoin, tm.Identifier,
					"object map %d-%d references %q without a join condition", pomIdx, omIdx, om.ParentTriplesMap)
			case !om.HasParent() && om.JoinCondition != nil:
				return newTranslationError(ErrCodeMalformedJoin, tm.Identifier,
					"object map %d-%d has a join condition without a parent triples map", pomIdx, omIdx)
			}
		}
	}
	return nil
}

// addPlainBranch emits Extend -> Serialize -> Sink for the subject classes
// and the plain POMs of a triples map.
func addPlainBranch(frag fragment, prefix string, poms []indexedPOM) error {
	tm := frag.tm

	pairs, err := plainExtendPairs(tm, prefix, poms)
	if err != nil {
		return err
	}

	extended, err := frag.plan.Apply(operator.Extend{Pairs: pairs}, plan.PrefixExtend)
	if err != nil {
		return errors.Wrapf(err, "triples map %q", tm.Identifier)
	}

	template := classLines(prefix, len(tm.SubjectMap.Classes)) + serializerTemplate(prefix, poms)
	return sinkBranch(extended, template, frag.index, tm.Identifier)
}

// addJoinBranch emits Join -> Extend -> Serialize -> Sink for one
// parent-referencing object map.
func addJoinBranch(frag fragment, prefix string, pom indexedPOM, om indexedObject, lookup fragmentLookup) error {
	tm := frag.tm

	parent, ok := lookup[om.om.ParentTriplesMap]
	if !ok {
		return newTranslationError(ErrCodeMissingParent, tm.Identifier,
			"parent triples map %q not found", om.om.ParentTriplesMap)
	}

	alias := joinAlias(parent.index)
	cond := om.om.JoinCondition

	joined, err := frag.plan.Join(parent.plan).
		Alias(alias).
		WhereBy(cond.ChildAttributes).
		ComparedTo(cond.ParentAttributes)
	if err != nil {
		return errors.Wrapf(err, "triples map %q: join with %q", tm.Identifier, parent.tm.Identifier)
	}

	pairs, objAttr, err := joinExtendPairs(tm, prefix, pom, om, parent.tm, alias)
	if err != nil {
		return err
	}

	slog.Debug("join branch",
		"triples_map", tm.Identifier,
		"parent", parent.tm.Identifier,
		"alias", alias,
		"object", objAttr,
	)

	extended, err := joined.Apply(operator.Extend{Pairs: pairs}, plan.PrefixExtend)
	if err != nil {
		return errors.Wrapf(err, "triples map %q", tm.Identifier)
	}

	template := patternLines(prefix, pom.idx, len(pom.predicates), []string{objAttr})
	return sinkBranch(extended, template, frag.index, tm.Identifier)
}

func sinkBranch(p plan.Processed, template string, index int, tmID string) error {
	serialized, err := p.Serialize(operator.Serializer{
		Template: template,
		Format:   operator.FormatNTriples,
	})
	if err != nil {
		return errors.Wrapf(err, "triples map %q", tmID)
	}
	if _, err := serialized.Sink(fileTarget(index)); err != nil {
		return errors.Wrapf(err, "triples map %q", tmID)
	}
	return nil
}
