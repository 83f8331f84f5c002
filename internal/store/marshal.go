package store

import (
	"github.com/cockroachdb/errors"

	"github.com/roach88/rmlplan/internal/operator"
	"github.com/roach88/rmlplan/internal/plan"
)

// marshalConfig converts an operator's configuration to canonical JSON TEXT
// for storage. Uses RFC 8785 canonical JSON so equal configs store equal
// text.
func marshalConfig(op operator.Operator) (string, error) {
	cfg := operator.CanonicalMap(op)["config"]
	data, err := plan.MarshalCanonical(cfg)
	if err != nil {
		return "", errors.Wrapf(err, "marshal %s config", op.Kind())
	}
	return string(data), nil
}

// unmarshalConfig rebuilds an operator of the given kind from stored TEXT.
func unmarshalConfig(kind, data string) (operator.Operator, error) {
	op, err := operator.UnmarshalConfig(kind, []byte(data))
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	return op, nil
}
