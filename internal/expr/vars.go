package expr

import "sort"

// CollectVariables parses text and returns the sorted, de-duplicated names
// of every identifier it references, including identifiers nested inside
// function-call arguments, negations and parenthesized groups.
func CollectVariables(text string) ([]string, error) {
	node, err := Parse(text)
	if err != nil {
		return nil, err
	}
	return Variables(node), nil
}

// Variables returns the sorted, de-duplicated identifier names in node.
// Every identifier Evaluate could consult appears in the result.
func Variables(node Node) []string {
	seen := make(map[string]struct{})
	Walk(node, func(n Node) bool {
		if id, ok := n.(*Ident); ok {
			seen[id.Name] = struct{}{}
		}
		return true
	})
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
