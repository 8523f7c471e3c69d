package taxonomy

import (
	"sort"
	"strings"

	"github.com/neonviz/neon/internal/models"
)

// FilterPredicate reports whether an exclusion filter on field currently
// covers value. Build uses it to seed each node's checked state.
type FilterPredicate func(field models.FieldReference, value string) bool

// NoFilters is a FilterPredicate for a taxonomy with no active filters.
func NoFilters(models.FieldReference, string) bool { return false }

// BuildOption customises Build.
type BuildOption func(*builder)

// WithOnChange registers fn on the built tree and runs it once the build
// completes.
func WithOnChange(fn func(*Tree)) BuildOption {
	return func(b *builder) {
		b.tree.OnChange(fn)
		b.notify = true
	}
}

// segment is one value for a hierarchy level. An undefined segment inserts
// no level, so the record passes straight through to the next one.
type segment struct {
	value string
	ok    bool
}

type builder struct {
	tree     *Tree
	fields   Fields
	filtered FilterPredicate
	notify   bool

	// Scratch indexes, discarded once the tree is finished.
	children []map[string]NodeIndex
	counted  []map[string]struct{}
	sources  []map[string]struct{}
}

// Build aggregates records into a taxonomy tree. A record lands under every
// combination of its category, type and subtype values; records without a
// category are skipped. A nil filtered predicate means nothing is filtered.
func Build(records []models.Record, fields Fields, filtered FilterPredicate, opts ...BuildOption) *Tree {
	if filtered == nil {
		filtered = NoFilters
	}

	b := &builder{
		tree:     newTree(fields),
		fields:   fields,
		filtered: filtered,
		children: []map[string]NodeIndex{{}},
		counted:  []map[string]struct{}{nil},
		sources:  []map[string]struct{}{nil},
	}

	for _, opt := range opts {
		opt(b)
	}

	if fields.Has(RoleCategory) {
		for _, rec := range records {
			b.insert(rec)
		}
	}

	b.tree.records = len(records)
	b.finish()
	b.tree.sortChildren(RootIndex)
	b.tree.reconcile()

	if b.notify {
		b.tree.notify()
	}

	return b.tree
}

func (b *builder) insert(rec models.Record) {
	categories := rec.Strings(b.fields.Get(RoleCategory).Column)
	if len(categories) == 0 {
		return
	}

	types := b.segments(rec, RoleType)
	subtypes := b.segments(rec, RoleSubType)

	extID := rec.String(b.fields.Get(RoleID).Column)
	name := extID
	if b.fields.Has(RoleValue) {
		if v := rec.String(b.fields.Get(RoleValue).Column); v != "" {
			name = v
		}
	}

	var srcIDs []string
	if b.fields.Has(RoleSourceID) {
		srcIDs = rec.Strings(b.fields.Get(RoleSourceID).Column)
	}

	chain := make([]NodeIndex, 0, len(hierarchy))
	for _, c := range dedupe(categories) {
		for _, t := range types {
			for _, s := range subtypes {
				chain = chain[:0]
				cur := b.group(RootIndex, RoleCategory, c)
				chain = append(chain, cur)

				if t.ok {
					cur = b.group(cur, RoleType, t.value)
					chain = append(chain, cur)
				}

				if s.ok {
					cur = b.group(cur, RoleSubType, s.value)
					chain = append(chain, cur)
				}

				b.count(chain, extID, name, srcIDs)
				b.leaf(cur, chain, extID, name, srcIDs)
			}
		}
	}
}

// segments returns the distinct values of role's field on rec, or a single
// undefined segment when the field is unset or holds nothing.
func (b *builder) segments(rec models.Record, role FieldRole) []segment {
	if !b.fields.Has(role) {
		return []segment{{}}
	}

	vals := dedupe(rec.Strings(b.fields.Get(role).Column))
	if len(vals) == 0 {
		return []segment{{}}
	}

	out := make([]segment, len(vals))
	for i, v := range vals {
		out[i] = segment{value: v, ok: true}
	}

	return out
}

func (b *builder) group(parent NodeIndex, role FieldRole, value string) NodeIndex {
	if i, ok := b.children[parent][value]; ok {
		return i
	}

	p := &b.tree.nodes[parent]
	path := value
	if parent != RootIndex {
		path = p.Path + "." + value
	}

	field := b.fields.Get(role)

	return b.add(value, Node{
		ExternalName: value,
		Name:         value,
		Path:         path,
		Parent:       parent,
		Field:        field,
		Role:         role,
		Group:        true,
		Level:        p.Level + 1,
		Checked:      !b.filtered(field, value),
	})
}

// leaf attaches the record's display value under parent. Records whose
// display value is just their ID only contribute to counts.
func (b *builder) leaf(parent NodeIndex, chain []NodeIndex, extID, name string, srcIDs []string) {
	if name == "" || name == extID {
		return
	}

	key := extID
	if key == "" {
		key = name
	}

	// Leaves share the sibling index with groups; keep their keys apart.
	slot := "\x00" + key
	if i, ok := b.children[parent][slot]; ok {
		b.addSources(i, srcIDs)
		return
	}

	role := b.fields.leafRole()
	field := b.fields.Get(role)
	p := &b.tree.nodes[parent]

	i := b.add(slot, Node{
		ExternalID:   extID,
		ExternalName: name,
		Name:         name,
		Path:         p.Path + "." + key,
		Parent:       parent,
		Field:        field,
		Role:         role,
		Level:        p.Level + 1,
		Checked:      !b.filtered(field, name),
	})
	b.addSources(i, srcIDs)

	for _, g := range chain {
		b.tree.nodes[g].LeafCount++
	}
}

// count registers the record against every group on its chain. Each group
// counts a record once however many paths reach it. Records with neither an
// ID nor a value share the empty key, so they count once per group.
func (b *builder) count(chain []NodeIndex, extID, name string, srcIDs []string) {
	key := extID
	if key == "" {
		key = name
	}

	for _, g := range chain {
		b.addSources(g, srcIDs)

		if b.counted[g] == nil {
			b.counted[g] = make(map[string]struct{})
		}
		b.counted[g][key] = struct{}{}
	}
}

func (b *builder) addSources(i NodeIndex, srcIDs []string) {
	if len(srcIDs) == 0 {
		return
	}

	if b.sources[i] == nil {
		b.sources[i] = make(map[string]struct{})
	}

	for _, s := range srcIDs {
		b.sources[i][s] = struct{}{}
	}
}

func (b *builder) add(key string, n Node) NodeIndex {
	i := NodeIndex(len(b.tree.nodes))
	n.ID = int(i)
	b.tree.nodes = append(b.tree.nodes, n)
	b.children = append(b.children, nil)
	b.counted = append(b.counted, nil)
	b.sources = append(b.sources, nil)

	parent := n.Parent
	b.tree.nodes[parent].Children = append(b.tree.nodes[parent].Children, i)

	if b.children[parent] == nil {
		b.children[parent] = make(map[string]NodeIndex)
	}
	b.children[parent][key] = i

	return i
}

// finish moves the scratch sets into the arena.
func (b *builder) finish() {
	for i := range b.tree.nodes {
		n := &b.tree.nodes[i]
		n.NodeCount = len(b.counted[i])

		if len(b.sources[i]) > 0 {
			n.SourceIDs = make([]string, 0, len(b.sources[i]))
			for s := range b.sources[i] {
				n.SourceIDs = append(n.SourceIDs, s)
			}
			sort.Strings(n.SourceIDs)
		}
	}

	b.children, b.counted, b.sources = nil, nil, nil
}

// sortChildren orders every sibling list case-insensitively by name and
// flags adjacent siblings whose labels collide.
func (t *Tree) sortChildren(i NodeIndex) {
	children := t.nodes[i].Children
	sort.SliceStable(children, func(a, b int) bool {
		na, nb := &t.nodes[children[a]], &t.nodes[children[b]]
		la, lb := strings.ToLower(na.Name), strings.ToLower(nb.Name)
		if la != lb {
			return la < lb
		}

		if na.Name != nb.Name {
			return na.Name < nb.Name
		}

		return na.ID < nb.ID
	})

	for k := 1; k < len(children); k++ {
		prev, cur := &t.nodes[children[k-1]], &t.nodes[children[k]]
		if strings.EqualFold(prev.Name, cur.Name) {
			prev.DuplicateLabel = true
			cur.DuplicateLabel = true
		}
	}

	for _, c := range children {
		t.sortChildren(c)
	}
}

// reconcile makes the seeded checkbox states consistent: an unchecked group
// unchecks its whole subtree, then every group's state is recomputed from
// its children.
func (t *Tree) reconcile() {
	t.Walk(func(i NodeIndex, n *Node) {
		if n.Group && !n.Checked {
			t.force(i, false)
		}
	})

	t.walkPost(RootIndex, t.recompute)
}

func dedupe(vals []string) []string {
	if len(vals) < 2 {
		return vals
	}

	seen := make(map[string]struct{}, len(vals))
	out := vals[:0:0]
	for _, v := range vals {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	return out
}
