package taxonomy

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neonviz/neon/internal/models"
)

func exclusion(column string, values ...string) models.FilterDesign {
	return models.NewExclusion(ref(column), models.Values(values...))
}

func wildcard(column string) models.FilterDesign {
	return models.NewExclusion(ref(column), []models.FilterValue{models.Undefined()})
}

// filterValueComparer lets cmp see through FilterValue's unexported fields.
var filterValueComparer = cmp.Comparer(func(a, b models.FilterValue) bool {
	return a.IsUndefined() == b.IsUndefined() && a.String() == b.String()
})

func assertExchange(t *testing.T, want, got Exchange) {
	t.Helper()
	if diff := cmp.Diff(want, got, filterValueComparer); diff != "" {
		t.Errorf("exchange mismatch (-want +got):\n%s", diff)
	}
}

// predicateFor turns Set designs into the filter predicate a rebuild sees.
func predicateFor(set []models.FilterDesign) FilterPredicate {
	return func(f models.FieldReference, v string) bool {
		for i := range set {
			if set[i].Matches(f, models.OperatorNotEqual) && set[i].Contains(v) {
				return true
			}
		}
		return false
	}
}

func TestToggle_UncheckCategory(t *testing.T) {
	tree := Build(responseData(), testFields(), nil)

	ex := tree.Toggle(mustPath(t, tree, "testCategoryI"), false)

	assertExchange(t, Exchange{
		Set: []models.FilterDesign{
			exclusion("category", "testCategoryI"),
			exclusion("type", "testTypeA", "testTypeB"),
			exclusion("subtype", "testSubType1", "testSubType2"),
		},
	}, ex)

	tree.Walk(func(_ NodeIndex, n *Node) {
		if n.Path == "testCategoryI" || strings.HasPrefix(n.Path, "testCategoryI.") {
			assert.False(t, n.Checked, n.Path)
			assert.False(t, n.Indeterminate, n.Path)
		}
	})
	assert.True(t, tree.Node(mustPath(t, tree, "testCategoryII")).Checked)
}

func TestToggle_UncheckType(t *testing.T) {
	tree := Build(responseData(), testFields(), nil)

	ex := tree.Toggle(mustPath(t, tree, "testCategoryI.testTypeA"), false)

	cat := tree.Node(mustPath(t, tree, "testCategoryI"))
	assert.True(t, cat.Checked)
	assert.True(t, cat.Indeterminate)

	assertExchange(t, Exchange{
		Set: []models.FilterDesign{
			exclusion("type", "testTypeA"),
			exclusion("subtype", "testSubType1", "testSubType2"),
		},
		Delete: []models.FilterDesign{wildcard("category")},
	}, ex)

	// The wildcard operand stays a literal element of the delete design.
	require.Len(t, ex.Delete[0].Values, 1)
	assert.True(t, ex.Delete[0].Values[0].IsUndefined())
}

func TestToggle_RoundTrip(t *testing.T) {
	for _, path := range []string{
		"testCategoryI",
		"testCategoryI.testTypeA",
		"testCategoryII.testTypeC.testSubType3",
		"testCategoryIIII",
	} {
		t.Run(path, func(t *testing.T) {
			tree := Build(responseData(), testFields(), nil)
			before := tree.View()
			i := mustPath(t, tree, path)

			off := tree.Toggle(i, false)
			on := tree.Toggle(i, true)

			if diff := cmp.Diff(before, tree.View()); diff != "" {
				t.Errorf("state not restored (-before +after):\n%s", diff)
			}

			// Re-checking clears every field the uncheck touched.
			assert.Empty(t, on.Set)
			assert.NotEmpty(t, off.Set)
			assert.ElementsMatch(t, append(columns(off.Set), columns(off.Delete)...), columns(on.Delete))
		})
	}
}

func TestToggle_RebuildReproducesExchange(t *testing.T) {
	tree := Build(responseData(), testFields(), nil)
	ex := tree.Toggle(mustPath(t, tree, "testCategoryI"), false)

	rebuilt := Build(responseData(), testFields(), predicateFor(ex.Set))

	assert.False(t, rebuilt.Node(mustPath(t, rebuilt, "testCategoryI")).Checked)
	assertExchange(t, ex, rebuilt.Exchange())
}

func designFor(t *testing.T, designs []models.FilterDesign, column string) models.FilterDesign {
	t.Helper()
	for i := range designs {
		if designs[i].Field.Column == column {
			return designs[i]
		}
	}
	t.Fatalf("no design on %q in %+v", column, designs)
	return models.FilterDesign{}
}

func TestToggle_RebuiltTreeKeepsExclusions(t *testing.T) {
	tree := Build(responseData(), testFields(), nil)
	ex := tree.Toggle(mustPath(t, tree, "testCategoryI.testTypeA.testSubType1"), false)

	rebuilt := Build(responseData(), testFields(), predicateFor(ex.Set))
	assert.False(t, rebuilt.Node(mustPath(t, rebuilt, "testCategoryI.testTypeA.testSubType1")).Checked)

	next := rebuilt.Toggle(mustPath(t, rebuilt, "testCategoryIII"), false)
	sub := designFor(t, next.Set, "subtype")
	cat := designFor(t, next.Set, "category")
	assert.True(t, sub.Contains("testSubType1"))
	assert.True(t, cat.Contains("testCategoryIII"))
}

func TestToggle_AllCheckedClearsEveryField(t *testing.T) {
	tree := Build(responseData(), testFields(), nil)

	ex := tree.Toggle(mustPath(t, tree, "testCategoryII"), true)

	assertExchange(t, Exchange{
		Delete: []models.FilterDesign{wildcard("category"), wildcard("type"), wildcard("subtype")},
	}, ex)
}

func TestToggle_UnknownNode(t *testing.T) {
	tree := Build(responseData(), testFields(), nil)
	before := tree.View()

	assert.True(t, tree.Toggle(RootIndex, false).Empty())
	assert.True(t, tree.Toggle(NodeIndex(tree.Len()), false).Empty())
	assert.True(t, tree.Toggle(NoParent, false).Empty())

	if diff := cmp.Diff(before, tree.View()); diff != "" {
		t.Errorf("tree changed (-before +after):\n%s", diff)
	}
}

// leafStates reports whether any childless node under i is checked or
// unchecked.
func leafStates(tree *Tree, i NodeIndex) (anyChecked, anyUnchecked bool) {
	for _, c := range tree.Node(i).Children {
		n := tree.Node(c)
		if len(n.Children) == 0 {
			if n.Checked {
				anyChecked = true
			} else {
				anyUnchecked = true
			}
			continue
		}

		ac, au := leafStates(tree, c)
		anyChecked = anyChecked || ac
		anyUnchecked = anyUnchecked || au
	}

	return anyChecked, anyUnchecked
}

func TestToggle_TriStateInvariant(t *testing.T) {
	tree := Build(responseData(), testFields(), nil)

	steps := []struct {
		path    string
		checked bool
	}{
		{"testCategoryI.testTypeA", false},
		{"testCategoryII.testTypeB", false},
		{"testCategoryIII", false},
		{"testCategoryI.testTypeB", false},
		{"testCategoryI.testTypeA.testSubType1", true},
		{"testCategoryIII.testTypeD", true},
	}

	for _, step := range steps {
		tree.Toggle(mustPath(t, tree, step.path), step.checked)

		tree.Walk(func(i NodeIndex, n *Node) {
			if len(n.Children) == 0 {
				return
			}

			anyChecked, anyUnchecked := leafStates(tree, i)
			switch {
			case !anyUnchecked:
				assert.True(t, n.Checked && !n.Indeterminate, "%s after %s: want checked", n.Path, step.path)
			case !anyChecked:
				assert.True(t, !n.Checked && !n.Indeterminate, "%s after %s: want unchecked", n.Path, step.path)
			default:
				assert.True(t, n.Indeterminate, "%s after %s: want indeterminate", n.Path, step.path)
			}
		})
	}
}

func TestToggle_FieldAliasSuppression(t *testing.T) {
	fields := NewFields(map[FieldRole]models.FieldReference{
		RoleCategory: ref("kind"),
		RoleType:     ref("kind"),
		RoleSubType:  ref("sub"),
		RoleID:       ref("id"),
	})
	records := []models.Record{
		{"id": "1", "kind": []any{"a", "b"}, "sub": "s1"},
		{"id": "2", "kind": []any{"c"}, "sub": "s2"},
	}

	tree := Build(records, fields, nil)
	require.Equal(t, []models.FieldReference{ref("kind"), ref("sub")}, fields.Owned())

	var paths []string
	tree.Walk(func(_ NodeIndex, n *Node) { paths = append(paths, n.Path) })

	for _, path := range paths {
		for _, checked := range []bool{false, true} {
			ex := tree.Toggle(mustPath(t, tree, path), checked)

			all := append(columns(ex.Set), columns(ex.Delete)...)
			assert.ElementsMatch(t, []string{"kind", "sub"}, all, "toggle %s=%v", path, checked)
		}
	}
}

func TestToggle_AliasValuesLandInOuterBucket(t *testing.T) {
	fields := NewFields(map[FieldRole]models.FieldReference{
		RoleCategory: ref("kind"),
		RoleType:     ref("kind"),
		RoleID:       ref("id"),
	})
	tree := Build([]models.Record{{"id": "1", "kind": []any{"a", "b"}}}, fields, nil)

	ex := tree.Toggle(mustPath(t, tree, "a.b"), false)

	assertExchange(t, Exchange{Set: []models.FilterDesign{exclusion("kind", "b")}}, ex)
}

func TestToggle_PartialChildAtTopLevel(t *testing.T) {
	fields := NewFields(map[FieldRole]models.FieldReference{
		RoleCategory: ref("category"),
		RoleType:     ref("type"),
		RoleValue:    ref("name"),
		RoleID:       ref("id"),
	})
	records := []models.Record{
		{"id": "1", "name": "leaf-a", "category": "x", "type": "t"},
		{"id": "2", "name": "leaf-b", "category": "x", "type": "t"},
	}
	tree := Build(records, fields, nil)

	ex := tree.Toggle(mustPath(t, tree, "x.t.1"), false)

	typ := tree.Node(mustPath(t, tree, "x.t"))
	assert.True(t, typ.Checked)
	assert.True(t, typ.Indeterminate)

	cat := tree.Node(mustPath(t, tree, "x"))
	assert.True(t, cat.Checked)
	assert.True(t, cat.Indeterminate, "a partial child makes a top-level category partial")

	assertExchange(t, Exchange{
		Set:    []models.FilterDesign{exclusion("type", "t")},
		Delete: []models.FilterDesign{wildcard("category")},
	}, ex)
}

// Below the top level a partial child counts as checked, so a level-two
// group above a partial subtype reports fully checked.
func TestToggle_PartialChildBelowTopLevel(t *testing.T) {
	fields := NewFields(map[FieldRole]models.FieldReference{
		RoleCategory: ref("category"),
		RoleType:     ref("type"),
		RoleSubType:  ref("subtype"),
		RoleValue:    ref("name"),
		RoleID:       ref("id"),
	})
	records := []models.Record{
		{"id": "1", "name": "leaf-a", "category": "x", "type": "t", "subtype": "s"},
		{"id": "2", "name": "leaf-b", "category": "x", "type": "t", "subtype": "s"},
	}
	tree := Build(records, fields, nil)

	ex := tree.Toggle(mustPath(t, tree, "x.t.s.1"), false)

	sub := tree.Node(mustPath(t, tree, "x.t.s"))
	assert.True(t, sub.Checked)
	assert.True(t, sub.Indeterminate)

	typ := tree.Node(mustPath(t, tree, "x.t"))
	assert.True(t, typ.Checked)
	assert.False(t, typ.Indeterminate)

	cat := tree.Node(mustPath(t, tree, "x"))
	assert.True(t, cat.Checked)
	assert.False(t, cat.Indeterminate)

	assertExchange(t, Exchange{
		Set:    []models.FilterDesign{exclusion("subtype", "s")},
		Delete: []models.FilterDesign{wildcard("category"), wildcard("type")},
	}, ex)
}
