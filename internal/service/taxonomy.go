// Package service provides business logic between API handlers and data stores.
package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/neonviz/neon/internal/domain"
	"github.com/neonviz/neon/internal/filter"
	"github.com/neonviz/neon/internal/metrics"
	"github.com/neonviz/neon/internal/models"
	"github.com/neonviz/neon/internal/taxonomy"
	"github.com/neonviz/neon/internal/widgets"
)

// Compile-time check: *TaxonomyService must satisfy domain.TaxonomyService.
var _ domain.TaxonomyService = (*TaxonomyService)(nil)

// FilterCollection is the filter layer a taxonomy seeds from and writes to.
type FilterCollection interface {
	List(ctx context.Context, tenantID string) ([]models.FilterDesign, error)
	ExchangeFilters(
		ctx context.Context, tenantID string, set, del []models.FilterDesign, notifySelf bool, origin string,
	) ([]models.FilterDesign, error)
	Subscribe(fn filter.Listener)
}

// RecordSearcher runs a widget's query against its datastore table.
type RecordSearcher interface {
	SearchRecords(ctx context.Context, tenantID string, q models.SearchQuery) ([]models.Record, error)
}

// WidgetCatalog resolves widget definitions.
type WidgetCatalog interface {
	Get(id string) (widgets.Widget, bool)
	List() []widgets.Widget
	OnReload(fn func(changed []string))
}

// sharedBuildTimeout bounds a datastore-backed build shared through singleflight.
const sharedBuildTimeout = 2 * time.Minute

type sessionKey struct {
	tenant, widget string
}

// session is one widget's tree for one tenant. mu serialises builds and
// toggles so a toggle's propagation finishes before the next event on the
// widget is processed.
type session struct {
	mu      sync.Mutex
	tree    *taxonomy.Tree
	builtAt time.Time
	stale   atomic.Bool
}

// TaxonomyService builds and caches taxonomy trees per tenant and widget and
// turns checkbox toggles into filter exchanges.
type TaxonomyService struct {
	filters FilterCollection
	records RecordSearcher
	widgets WidgetCatalog
	log     *logrus.Logger
	now     func() time.Time

	// searchLimit applies to widgets that set no limit of their own.
	searchLimit int

	builds singleflight.Group

	mu       sync.Mutex
	sessions map[sessionKey]*session
}

// TaxonomyOption configures a TaxonomyService.
type TaxonomyOption func(*TaxonomyService)

// WithSearchLimit sets the record limit for widgets without their own.
func WithSearchLimit(n int) TaxonomyOption {
	return func(s *TaxonomyService) { s.searchLimit = n }
}

// NewTaxonomyService creates a TaxonomyService. records may be nil, in which
// case builds must supply their own records.
func NewTaxonomyService(
	filters FilterCollection, records RecordSearcher, catalog WidgetCatalog, log *logrus.Logger, opts ...TaxonomyOption,
) *TaxonomyService {
	s := &TaxonomyService{
		filters:  filters,
		records:  records,
		widgets:  catalog,
		log:      log,
		now:      time.Now,
		sessions: make(map[sessionKey]*session),
	}

	for _, opt := range opts {
		opt(s)
	}

	filters.Subscribe(s.onFiltersChanged)
	catalog.OnReload(s.onWidgetsReloaded)

	return s
}

// Widgets lists the configured widgets.
func (s *TaxonomyService) Widgets() []models.WidgetSummary {
	list := s.widgets.List()

	out := make([]models.WidgetSummary, 0, len(list))
	for i := range list {
		out = append(out, list[i].Summary())
	}

	return out
}

// Build aggregates records into the widget's tree, seeding checkbox state
// from the tenant's active filters. With nil records the widget's table is
// searched; concurrent searches for the same widget share one build.
func (s *TaxonomyService) Build(
	ctx context.Context, tenantID, widgetID string, records []models.Record,
) (*models.TaxonomyResult, error) {
	w, ok := s.widgets.Get(widgetID)
	if !ok {
		return nil, models.ErrWidgetNotFound
	}

	sess := s.session(tenantID, widgetID, true)

	if records != nil {
		return s.build(ctx, tenantID, &w, sess, records)
	}

	if s.records == nil {
		return nil, models.ErrSearchUnavailable
	}

	// The search is shared by every caller collapsed onto it, so it must not
	// die with whichever request happened to start it.
	ch := s.builds.DoChan(tenantID+"/"+widgetID, func() (any, error) {
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedBuildTimeout)
		defer cancel()

		return s.build(bctx, tenantID, &w, sess, nil)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}

		return res.Val.(*models.TaxonomyResult), nil //nolint:forcetypeassert // build only returns results.
	}
}

func (s *TaxonomyService) build(
	ctx context.Context, tenantID string, w *widgets.Widget, sess *session, records []models.Record,
) (*models.TaxonomyResult, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	fields := w.TaxonomyFields()

	active, err := s.filters.List(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("loading filters: %w", err)
	}

	if records == nil {
		limit := w.Limit
		if limit == 0 {
			limit = s.searchLimit
		}

		records, err = s.records.SearchRecords(ctx, tenantID, models.SearchQuery{
			Datastore:    w.Datastore,
			Table:        w.Table,
			Filters:      active,
			IgnoreFields: fields.Owned(),
			Limit:        limit,
		})
		if err != nil {
			return nil, fmt.Errorf("searching records: %w", err)
		}
	}

	start := time.Now()
	tree := taxonomy.Build(records, fields, func(f models.FieldReference, value string) bool {
		return filter.Excludes(active, f, value)
	})
	metrics.TaxonomyBuildDuration.Observe(time.Since(start).Seconds())
	metrics.TaxonomyBuilds.WithLabelValues(w.ID).Inc()
	metrics.TaxonomyNodes.Set(float64(tree.Len() - 1))

	sess.tree = tree
	sess.builtAt = s.now().UTC()
	sess.stale.Store(false)

	s.log.WithFields(logrus.Fields{
		"action":    "taxonomy.build",
		"tenant_id": tenantID,
		"widget":    w.ID,
		"records":   tree.Records(),
		"nodes":     tree.Len() - 1,
	}).Info("taxonomy built")

	return s.result(w.ID, sess), nil
}

// Tree returns the cached tree for the widget.
func (s *TaxonomyService) Tree(_ context.Context, tenantID, widgetID string) (*models.TaxonomyResult, error) {
	if _, ok := s.widgets.Get(widgetID); !ok {
		return nil, models.ErrWidgetNotFound
	}

	sess := s.session(tenantID, widgetID, false)
	if sess == nil {
		return nil, models.ErrTreeNotBuilt
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.tree == nil {
		return nil, models.ErrTreeNotBuilt
	}

	return s.result(widgetID, sess), nil
}

// Toggle checks or unchecks one node and hands the resulting exchange to the
// filter collection. The widget is not asked to react to its own change.
func (s *TaxonomyService) Toggle(
	ctx context.Context, tenantID, widgetID string, req models.ToggleRequest,
) (*models.ToggleResult, error) {
	if _, ok := s.widgets.Get(widgetID); !ok {
		return nil, models.ErrWidgetNotFound
	}

	sess := s.session(tenantID, widgetID, false)
	if sess == nil {
		return nil, models.ErrTreeNotBuilt
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.tree == nil {
		return nil, models.ErrTreeNotBuilt
	}

	idx, err := resolveNode(sess.tree, req)
	if err != nil {
		return nil, err
	}

	checked := *req.Checked
	ex := sess.tree.Toggle(idx, checked)
	metrics.TaxonomyToggles.WithLabelValues(strconv.FormatBool(checked)).Inc()

	if !ex.Empty() {
		if _, err := s.filters.ExchangeFilters(ctx, tenantID, ex.Set, ex.Delete, false, widgetID); err != nil {
			// The tree no longer matches the stored filters; the next build reseeds it.
			sess.stale.Store(true)
			return nil, err
		}
	}

	node := sess.tree.Node(idx)
	s.log.WithFields(logrus.Fields{
		"action":    "taxonomy.toggle",
		"tenant_id": tenantID,
		"widget":    widgetID,
		"node":      node.Path,
		"checked":   checked,
		"set":       len(ex.Set),
		"delete":    len(ex.Delete),
	}).Info("taxonomy node toggled")

	return &models.ToggleResult{
		TaxonomyResult:  *s.result(widgetID, sess),
		FiltersToSet:    nonNil(ex.Set),
		FiltersToDelete: nonNil(ex.Delete),
	}, nil
}

func resolveNode(tree *taxonomy.Tree, req models.ToggleRequest) (taxonomy.NodeIndex, error) {
	if req.NodeID > 0 {
		idx, ok := tree.Lookup(req.NodeID)
		if !ok {
			return idx, models.ErrNodeNotFound
		}

		return idx, nil
	}

	return tree.FindPath(req.Path)
}

func nonNil(designs []models.FilterDesign) []models.FilterDesign {
	if designs == nil {
		return []models.FilterDesign{}
	}

	return designs
}

// result renders sess. The caller holds sess.mu.
func (s *TaxonomyService) result(widgetID string, sess *session) *models.TaxonomyResult {
	groups := sess.tree.View()
	if groups == nil {
		groups = []models.TaxonomyNode{}
	}

	return &models.TaxonomyResult{
		WidgetID: widgetID,
		Total:    sess.tree.Total(),
		Records:  sess.tree.Records(),
		Stale:    sess.stale.Load(),
		BuiltAt:  sess.builtAt,
		Groups:   groups,
	}
}

func (s *TaxonomyService) session(tenantID, widgetID string, create bool) *session {
	key := sessionKey{tenantID, widgetID}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	if !ok && create {
		sess = &session{}
		s.sessions[key] = sess
	}

	return sess
}

// Invalidate marks every tree of the tenant that reads from the table stale.
func (s *TaxonomyService) Invalidate(tenantID, datastore, table string) {
	s.markStale(tenantID, func(w *widgets.Widget) bool {
		return w.Datastore == datastore && w.Table == table
	})
}

// onFiltersChanged marks the tenant's affected trees stale. The origin
// widget is skipped unless the change asks it to react.
func (s *TaxonomyService) onFiltersChanged(tenantID string, change models.FilterChange) {
	s.markStale(tenantID, func(w *widgets.Widget) bool {
		if w.ID == change.Origin && !change.NotifySelf {
			return false
		}

		return affects(w, change.Fields)
	})
}

// affects reports whether a change on any of keys can alter w's tree: either
// its query reads the field's table or the field seeds its checkboxes.
func affects(w *widgets.Widget, keys []string) bool {
	prefix := w.Datastore + "." + w.Table + "."
	owned := w.TaxonomyFields().Owned()

	for _, key := range keys {
		if strings.HasPrefix(key, prefix) {
			return true
		}

		for _, f := range owned {
			if f.Key() == key {
				return true
			}
		}
	}

	return false
}

func (s *TaxonomyService) markStale(tenantID string, match func(*widgets.Widget) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, sess := range s.sessions {
		if key.tenant != tenantID {
			continue
		}

		w, ok := s.widgets.Get(key.widget)
		if !ok || match(&w) {
			sess.stale.Store(true)
		}
	}
}

// onWidgetsReloaded drops cached trees of redefined or removed widgets.
func (s *TaxonomyService) onWidgetsReloaded(changed []string) {
	drop := make(map[string]struct{}, len(changed))
	for _, id := range changed {
		drop[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.sessions {
		if _, ok := drop[key.widget]; ok {
			delete(s.sessions, key)
		}
	}

	s.log.WithField("widgets", changed).Info("dropped taxonomy sessions for reloaded widgets")
}
