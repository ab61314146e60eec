package engine

import "github.com/matthewbaird/caseforms/internal/form"

// Subject describes the household member a form is being completed for.
type Subject struct {
	HeadOfHousehold bool `json:"headOfHousehold"`
	Age             *int `json:"age,omitempty"`
	Veteran         bool `json:"veteran"`
	InHousehold     bool `json:"inHousehold"`
}

// Adult reports whether the subject's age is known and at least 18.
func (s Subject) Adult() bool {
	return s.Age != nil && *s.Age >= 18
}

// Applies reports whether an item tagged with about concerns s.
func (s Subject) Applies(about form.DataCollectedAbout) bool {
	switch about {
	case form.AboutNone, form.AboutAllClients:
		return true
	case form.AboutHoH:
		return s.HeadOfHousehold
	case form.AboutHoHAndAdults:
		return s.HeadOfHousehold || s.Adult()
	case form.AboutVeteranHoH:
		return s.HeadOfHousehold && s.Veteran
	case form.AboutHousehold:
		return s.InHousehold || s.HeadOfHousehold
	}
	return false
}

// ApplyDataCollectedAbout returns a deep copy of items without the items
// that do not concern subject. Removing a group removes its subtree.
// Applying it to its own output with the same subject changes nothing.
func ApplyDataCollectedAbout(items []*form.Item, subject Subject) []*form.Item {
	out := make([]*form.Item, 0, len(items))
	for _, it := range items {
		if it == nil || !subject.Applies(it.DataCollectedAbout) {
			continue
		}
		cp := it.Clone()
		cp.Items = nil
		if it.Items != nil {
			cp.Items = ApplyDataCollectedAbout(it.Items, subject)
		}
		out = append(out, cp)
	}
	return out
}
