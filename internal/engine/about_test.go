package engine

import (
	"testing"

	"github.com/matthewbaird/caseforms/internal/form"
	"github.com/stretchr/testify/assert"
)

func ageOf(n int) *int { return &n }

func aboutTree() []*form.Item {
	return []*form.Item{
		{LinkID: "name", Kind: form.KindString},
		{LinkID: "hohOnly", Kind: form.KindString, DataCollectedAbout: form.AboutHoH},
		{LinkID: "adults", Kind: form.KindString, DataCollectedAbout: form.AboutHoHAndAdults},
		{LinkID: "vet", Kind: form.KindGroup, DataCollectedAbout: form.AboutVeteranHoH, Items: []*form.Item{
			{LinkID: "branch", Kind: form.KindString},
		}},
		{LinkID: "household", Kind: form.KindGroup, DataCollectedAbout: form.AboutHousehold, Items: []*form.Item{
			{LinkID: "size", Kind: form.KindInteger, DataCollectedAbout: form.AboutAllClients},
			{LinkID: "hohIncome", Kind: form.KindCurrency, DataCollectedAbout: form.AboutHoH},
		}},
	}
}

func ids(items []*form.Item) []string {
	var out []string
	form.Walk(items, func(it *form.Item, _ []*form.Item) bool {
		out = append(out, it.LinkID)
		return true
	})
	return out
}

func TestApplyDataCollectedAbout_HeadOfHousehold(t *testing.T) {
	hoh := Subject{HeadOfHousehold: true}
	member := Subject{InHousehold: true, Age: ageOf(12)}

	assert.Contains(t, ids(ApplyDataCollectedAbout(aboutTree(), hoh)), "hohOnly")
	assert.NotContains(t, ids(ApplyDataCollectedAbout(aboutTree(), member)), "hohOnly")
}

func TestApplyDataCollectedAbout_Subjects(t *testing.T) {
	cases := []struct {
		name    string
		subject Subject
		want    []string
	}{
		{"head of household", Subject{HeadOfHousehold: true},
			[]string{"name", "hohOnly", "adults", "household", "size", "hohIncome"}},
		{"veteran head", Subject{HeadOfHousehold: true, Veteran: true},
			[]string{"name", "hohOnly", "adults", "vet", "branch", "household", "size", "hohIncome"}},
		{"adult member", Subject{InHousehold: true, Age: ageOf(30)},
			[]string{"name", "adults", "household", "size"}},
		{"child member", Subject{InHousehold: true, Age: ageOf(9)},
			[]string{"name", "household", "size"}},
		{"unknown age, no household", Subject{},
			[]string{"name"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ids(ApplyDataCollectedAbout(aboutTree(), tc.subject)))
		})
	}
}

func TestApplyDataCollectedAbout_Idempotent(t *testing.T) {
	for _, s := range []Subject{{HeadOfHousehold: true}, {InHousehold: true, Age: ageOf(40)}, {}} {
		once := ApplyDataCollectedAbout(aboutTree(), s)
		twice := ApplyDataCollectedAbout(once, s)
		assert.Equal(t, once, twice)
	}
}

func TestApplyDataCollectedAbout_DoesNotMutateInput(t *testing.T) {
	tree := aboutTree()
	out := ApplyDataCollectedAbout(tree, Subject{})
	out[0].Label = "changed"
	assert.Equal(t, "", tree[0].Label)
	assert.Len(t, tree[4].Items, 2)
}
