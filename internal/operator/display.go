package operator

import (
	"fmt"
	"strings"
)

// PrettyString renders op as a short multi-line block: the kind on the
// first line, then one "key: value" line per configuration entry. Map
// entries are listed in key order.
func PrettyString(op Operator) string {
	var b strings.Builder
	b.WriteString(op.Kind())

	line := func(format string, args ...any) {
		b.WriteByte('\n')
		fmt.Fprintf(&b, format, args...)
	}

	switch o := op.(type) {
	case Source:
		line("type: %s", o.SourceType)
		line("format: %s", o.DataFormat)
		if len(o.ReferenceIterators) > 0 {
			line("iterators: %s", strings.Join(o.ReferenceIterators, ", "))
		}
		for _, k := range sortedKeys(o.Config) {
			line("%s: %s", k, o.Config[k])
		}
	case Projection:
		line("attributes: %s", strings.Join(o.Attributes.Sorted(), ", "))
	case Extend:
		for _, name := range o.SortedNames() {
			line("%s: %s", name, innerString(o.Pairs[name]))
		}
	case Rename:
		for _, from := range sortedKeys(o.Pairs) {
			line("%s -> %s", from, o.Pairs[from])
		}
	case Join:
		line("alias: %s", o.Alias)
		line("type: %s", o.JoinType)
		for i := range o.ChildAttributes {
			parent := ""
			if i < len(o.ParentAttributes) {
				parent = o.ParentAttributes[i]
			}
			line("%s = %s_%s", o.ChildAttributes[i], o.Alias, parent)
		}
	case Serializer:
		line("format: %s", o.Format)
		for _, l := range strings.Split(strings.TrimRight(o.Template, "\n"), "\n") {
			line("%s", strings.TrimSpace(l))
		}
		for _, k := range sortedKeys(o.Options) {
			line("%s: %s", k, o.Options[k])
		}
	case Target:
		line("type: %s", o.TargetType)
		line("format: %s", o.DataFormat)
		for _, k := range sortedKeys(o.Config) {
			line("%s: %s", k, o.Config[k])
		}
	}
	return b.String()
}
