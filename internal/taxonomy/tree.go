package taxonomy

import "github.com/neonviz/neon/internal/models"

// NodeIndex addresses a node in a Tree's arena. It doubles as the node's
// synthetic ID.
type NodeIndex int

// Arena positions with fixed meaning.
const (
	NoParent  NodeIndex = -1
	RootIndex NodeIndex = 0
)

// Node is one entry of the arena. Group nodes are categories, types and
// subtypes; the rest are leaf values.
type Node struct {
	ID             int
	ExternalID     string
	ExternalName   string
	Name           string
	Path           string
	SourceIDs      []string
	Parent         NodeIndex
	Field          models.FieldReference
	Role           FieldRole
	Group          bool
	Level          int
	Checked        bool
	Indeterminate  bool
	DuplicateLabel bool
	Children       []NodeIndex
	NodeCount      int
	LeafCount      int
}

// filterValue is the operand a filter on this node's field would carry.
func (n *Node) filterValue() string {
	if n.ExternalName != "" {
		return n.ExternalName
	}

	return n.Name
}

// unselected reports whether the node needs an explicit exclusion: it is
// unchecked, or it is a partially checked node below the top level.
func (n *Node) unselected() bool {
	return !n.Checked || (n.Level > 1 && n.Indeterminate)
}

// Tree is a rooted taxonomy. The synthetic root sits at RootIndex and its
// children are the top-level categories.
type Tree struct {
	nodes    []Node
	fields   Fields
	records  int
	onChange []func(*Tree)
}

func newTree(fields Fields) *Tree {
	return &Tree{
		fields: fields,
		nodes: []Node{{
			ID:      int(RootIndex),
			Parent:  NoParent,
			Group:   true,
			Checked: true,
		}},
	}
}

// Fields returns the field table the tree was built with.
func (t *Tree) Fields() Fields { return t.fields }

// Records returns how many input records the tree was built from.
func (t *Tree) Records() int { return t.records }

// Len returns the number of arena entries, the root included.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the node at i. The pointer stays valid until the tree is rebuilt.
func (t *Tree) Node(i NodeIndex) *Node {
	if !t.valid(i) {
		return nil
	}

	return &t.nodes[i]
}

// Roots returns the top-level categories in display order.
func (t *Tree) Roots() []NodeIndex {
	return t.nodes[RootIndex].Children
}

// Total sums NodeCount over the top-level categories.
func (t *Tree) Total() int {
	total := 0
	for _, i := range t.Roots() {
		total += t.nodes[i].NodeCount
	}

	return total
}

// Lookup resolves a synthetic node ID. The root is not addressable.
func (t *Tree) Lookup(id int) (NodeIndex, bool) {
	i := NodeIndex(id)
	if i == RootIndex || !t.valid(i) {
		return NoParent, false
	}

	return i, true
}

// FindPath resolves a dotted path ("category.type.subtype"). A leaf's path
// ends in its external ID, and segments may contain dots, so one path can
// name several nodes; that is reported as models.ErrAmbiguousPath.
func (t *Tree) FindPath(path string) (NodeIndex, error) {
	found := NoParent
	if path == "" {
		return found, models.ErrNodeNotFound
	}

	for i := 1; i < len(t.nodes); i++ {
		if t.nodes[i].Path != path {
			continue
		}

		if found != NoParent {
			return NoParent, models.ErrAmbiguousPath
		}
		found = NodeIndex(i)
	}

	if found == NoParent {
		return NoParent, models.ErrNodeNotFound
	}

	return found, nil
}

// FindName returns the first top-level category with the given name.
func (t *Tree) FindName(name string) (NodeIndex, bool) {
	for _, i := range t.Roots() {
		if t.nodes[i].Name == name {
			return i, true
		}
	}

	return NoParent, false
}

// Child returns the child of parent with the given name.
func (t *Tree) Child(parent NodeIndex, name string) (NodeIndex, bool) {
	if !t.valid(parent) {
		return NoParent, false
	}

	for _, c := range t.nodes[parent].Children {
		if t.nodes[c].Name == name {
			return c, true
		}
	}

	return NoParent, false
}

// Descendants counts every node beneath i.
func (t *Tree) Descendants(i NodeIndex) int {
	if !t.valid(i) {
		return 0
	}

	n := 0
	for _, c := range t.nodes[i].Children {
		n += 1 + t.Descendants(c)
	}

	return n
}

// Walk visits every node except the root in display order, parents first.
func (t *Tree) Walk(fn func(i NodeIndex, n *Node)) {
	var visit func(NodeIndex)
	visit = func(i NodeIndex) {
		for _, c := range t.nodes[i].Children {
			fn(c, &t.nodes[c])
			visit(c)
		}
	}
	visit(RootIndex)
}

// walkPost visits i's subtree children first, i last.
func (t *Tree) walkPost(i NodeIndex, fn func(NodeIndex)) {
	for _, c := range t.nodes[i].Children {
		t.walkPost(c, fn)
	}
	fn(i)
}

// OnChange registers fn to run after every toggle applied to the tree.
func (t *Tree) OnChange(fn func(*Tree)) {
	if fn != nil {
		t.onChange = append(t.onChange, fn)
	}
}

func (t *Tree) notify() {
	for _, fn := range t.onChange {
		fn(t)
	}
}

func (t *Tree) valid(i NodeIndex) bool {
	return i >= 0 && int(i) < len(t.nodes)
}

// View renders the forest for the tree widget.
func (t *Tree) View() []models.TaxonomyNode {
	return t.viewChildren(RootIndex)
}

// ViewNode renders the subtree rooted at i.
func (t *Tree) ViewNode(i NodeIndex) models.TaxonomyNode {
	n := &t.nodes[i]

	return models.TaxonomyNode{
		ID:             n.ID,
		ExternalID:     n.ExternalID,
		ExternalName:   n.ExternalName,
		Name:           n.Name,
		Path:           n.Path,
		Field:          n.Field,
		Level:          n.Level,
		Checked:        n.Checked,
		Indeterminate:  n.Indeterminate,
		DuplicateLabel: n.DuplicateLabel,
		NodeCount:      n.NodeCount,
		LeafCount:      n.LeafCount,
		SourceIDs:      n.SourceIDs,
		Children:       t.viewChildren(i),
	}
}

func (t *Tree) viewChildren(i NodeIndex) []models.TaxonomyNode {
	children := t.nodes[i].Children
	if len(children) == 0 {
		return nil
	}

	out := make([]models.TaxonomyNode, 0, len(children))
	for _, c := range children {
		out = append(out, t.ViewNode(c))
	}

	return out
}
