package taxonomy

import "github.com/neonviz/neon/internal/models"

// Exchange is the filter delta a toggle produces: designs to upsert and
// designs whose fields should be cleared.
type Exchange struct {
	Set    []models.FilterDesign
	Delete []models.FilterDesign
}

// Empty reports whether the exchange carries no designs.
func (e Exchange) Empty() bool {
	return len(e.Set) == 0 && len(e.Delete) == 0
}

// Toggle sets node i to checked, cascades the state through its subtree,
// recomputes every ancestor and returns the resulting filter exchange.
// Unknown indexes and the root leave the tree untouched.
func (t *Tree) Toggle(i NodeIndex, checked bool) Exchange {
	if i == RootIndex || !t.valid(i) {
		return Exchange{}
	}

	t.force(i, checked)

	for p := t.nodes[i].Parent; p != NoParent; p = t.nodes[p].Parent {
		t.recompute(p)
	}

	ex := t.Exchange()
	t.notify()

	return ex
}

// force sets i and every descendant to checked, clearing partial state.
func (t *Tree) force(i NodeIndex, checked bool) {
	n := &t.nodes[i]
	n.Checked = checked
	n.Indeterminate = false

	for _, c := range n.Children {
		t.force(c, checked)
	}
}

// recompute derives a group's state from its direct children. Below the top
// level a partially checked child counts as checked; a top-level category
// turns partial as soon as any child is partial.
func (t *Tree) recompute(i NodeIndex) {
	n := &t.nodes[i]
	if len(n.Children) == 0 {
		return
	}

	anyChecked, anyUnchecked, anyPartial := false, false, false
	for _, c := range n.Children {
		ch := &t.nodes[c]
		if ch.Checked {
			anyChecked = true
		} else {
			anyUnchecked = true
		}

		if ch.Checked && ch.Indeterminate {
			anyPartial = true
		}
	}

	switch {
	case !anyUnchecked:
		n.Checked, n.Indeterminate = true, false
	case !anyChecked:
		n.Checked, n.Indeterminate = false, false
	default:
		n.Checked, n.Indeterminate = true, true
	}

	if n.Level == 1 && anyPartial {
		n.Checked, n.Indeterminate = true, true
	}
}

// Exchange derives the filter delta for the tree's current state. Every
// unselected node contributes its value to the bucket of the first hierarchy
// level sharing its field; non-empty buckets become Set designs and empty
// ones become wildcard Delete designs. Levels that alias an outer level's
// column are skipped.
func (t *Tree) Exchange() Exchange {
	var buckets [len(hierarchy)][]models.FilterValue
	seen := [len(hierarchy)]map[string]struct{}{}

	t.Walk(func(_ NodeIndex, n *Node) {
		if !n.unselected() {
			return
		}

		slot, ok := t.bucketFor(n.Field)
		if !ok {
			return
		}

		v := n.filterValue()
		if seen[slot] == nil {
			seen[slot] = make(map[string]struct{})
		}

		if _, dup := seen[slot][v]; dup {
			return
		}
		seen[slot][v] = struct{}{}
		buckets[slot] = append(buckets[slot], models.Value(v))
	})

	var ex Exchange
	for slot, role := range hierarchy {
		if !t.fields.Has(role) || t.fields.suppressed(role) {
			continue
		}

		field := t.fields.Get(role)
		if len(buckets[slot]) > 0 {
			ex.Set = append(ex.Set, models.NewExclusion(field, buckets[slot]))
		} else {
			ex.Delete = append(ex.Delete, models.NewExclusion(field, []models.FilterValue{models.Undefined()}))
		}
	}

	return ex
}

func (t *Tree) bucketFor(field models.FieldReference) (int, bool) {
	for slot, role := range hierarchy {
		if t.fields.Has(role) && t.fields.Get(role).Equal(field) {
			return slot, true
		}
	}

	return 0, false
}
