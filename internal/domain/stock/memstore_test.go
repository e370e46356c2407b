package stock

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alvarodevdoo/ERP-sub000/internal/core/apperror"
	"github.com/alvarodevdoo/ERP-sub000/internal/core/id"
	"github.com/alvarodevdoo/ERP-sub000/internal/core/security"
)

// memState is the whole ledger of the in-memory store.
type memState struct {
	items        map[string]*Item
	batches      map[id.ID][]Batch
	movements    []Movement
	reservations map[id.ID]*Reservation
	locations    map[id.ID]*Location
	products     map[string]string // tenant|product -> name
}

func newMemState() *memState {
	return &memState{
		items:        map[string]*Item{},
		batches:      map[id.ID][]Batch{},
		reservations: map[id.ID]*Reservation{},
		locations:    map[id.ID]*Location{},
		products:     map[string]string{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.items {
		cp := *v
		c.items[k] = &cp
	}
	for k, v := range s.batches {
		c.batches[k] = append([]Batch(nil), v...)
	}
	c.movements = append([]Movement(nil), s.movements...)
	for k, v := range s.reservations {
		cp := *v
		c.reservations[k] = &cp
	}
	for k, v := range s.locations {
		cp := *v
		c.locations[k] = &cp
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	return c
}

// memStore implements Store and tx.Manager. A transaction holds txMu for its
// whole duration, which serializes writers the way row locks do, and restores
// a snapshot on error.
type memStore struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	state *memState
	fail  map[string]error
	after map[string]func()

	readOnlyRuns int
}

type memTxKey struct{}

func newMemStore() *memStore {
	return &memStore{state: newMemState(), fail: map[string]error{}, after: map[string]func(){}}
}

func (m *memStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.state.clone()
	m.mu.Unlock()

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.mu.Lock()
		m.state = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// ReadOnly holds txMu for the whole of fn, so writers wait and fn reads one
// unchanging state.
func (m *memStore) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	m.readOnlyRuns++
	m.mu.Unlock()
	return fn(context.WithValue(ctx, memTxKey{}, true))
}

func (m *memStore) ForTenant(tenantID string) Repository {
	return &memRepo{store: m, tenantID: tenantID}
}

func (m *memStore) TenantsWithExpiredReservations(_ context.Context, now time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, r := range m.state.reservations {
		if r.Status == ReservationActive && r.ExpiresAt != nil && !r.ExpiresAt.After(now) && !seen[r.TenantID] {
			seen[r.TenantID] = true
			out = append(out, r.TenantID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memStore) addProduct(tenantID string, productID id.ID, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.products[tenantID+"|"+productID.String()] = name
}

func (m *memStore) failOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[method] = err
}

// afterNext runs fn once, right after the next successful call of method
// returns its result and releases the store.
func (m *memStore) afterNext(method string, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.after[method] = fn
}

func (m *memStore) runAfter(method string) {
	m.mu.Lock()
	fn := m.after[method]
	delete(m.after, method)
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

type memRepo struct {
	store    *memStore
	tenantID string
}

func itemKey(tenantID string, productID id.ID, locationID *id.ID) string {
	loc := "-"
	if locationID != nil {
		loc = locationID.String()
	}
	return tenantID + "|" + productID.String() + "|" + loc
}

// lock takes the state mutex and reports an injected failure for method.
func (r *memRepo) lock(method string) (*memState, func(), error) {
	r.store.mu.Lock()
	unlock := r.store.mu.Unlock
	if err := r.store.fail[method]; err != nil {
		unlock()
		return nil, func() {}, err
	}
	return r.store.state, unlock, nil
}

func (r *memRepo) TenantID() string { return r.tenantID }

func (r *memRepo) ProductExists(_ context.Context, productID id.ID) (bool, error) {
	st, unlock, err := r.lock("ProductExists")
	defer unlock()
	if err != nil {
		return false, err
	}
	_, ok := st.products[r.tenantID+"|"+productID.String()]
	return ok, nil
}

func (r *memRepo) getItem(st *memState, productID id.ID, locationID *id.ID) (*Item, error) {
	it, ok := st.items[itemKey(r.tenantID, productID, locationID)]
	if !ok || it.DeletionMark {
		return nil, apperror.NewNotFound("stock item", productID)
	}
	cp := *it
	cp.Batches = append([]Batch(nil), st.batches[it.ID]...)
	cp.Derive()
	return &cp, nil
}

func (r *memRepo) GetItem(_ context.Context, productID id.ID, locationID *id.ID) (*Item, error) {
	st, unlock, err := r.lock("GetItem")
	defer unlock()
	if err != nil {
		return nil, err
	}
	return r.getItem(st, productID, locationID)
}

func (r *memRepo) GetItemForUpdate(_ context.Context, productID id.ID, locationID *id.ID) (*Item, error) {
	st, unlock, err := r.lock("GetItemForUpdate")
	defer unlock()
	if err != nil {
		return nil, err
	}
	return r.getItem(st, productID, locationID)
}

func (r *memRepo) ApplyQuantityDelta(_ context.Context, d QuantityDelta) (*Item, error) {
	st, unlock, err := r.lock("ApplyQuantityDelta")
	defer unlock()
	if err != nil {
		return nil, err
	}
	key := itemKey(r.tenantID, d.ProductID, d.LocationID)
	it, ok := st.items[key]
	if !ok {
		if !d.Delta.IsPositive() {
			return nil, apperror.NewNotFound("stock item", d.ProductID)
		}
		cost := decimal.Zero
		if d.UnitCost != nil {
			cost = *d.UnitCost
		} else if d.InitialUnitCost != nil {
			cost = *d.InitialUnitCost
		}
		it = &Item{
			ID: id.New(), TenantID: r.tenantID, ProductID: d.ProductID, LocationID: d.LocationID,
			UnitCost: cost, CreatedAt: d.At,
		}
		st.items[key] = it
	} else {
		if it.DeletionMark {
			it.Quantity, it.ReservedQuantity = decimal.Zero, decimal.Zero
		}
		if d.UnitCost != nil {
			it.UnitCost = *d.UnitCost
		}
	}
	it.DeletionMark = false
	it.Quantity = it.Quantity.Add(d.Delta)
	mt := d.MovementType
	at := d.At
	it.LastMovementType = &mt
	it.LastMovementAt = &at
	it.UpdatedAt = d.At
	cp := *it
	cp.Derive()
	return &cp, nil
}

func (r *memRepo) ApplyReservedDelta(_ context.Context, productID id.ID, locationID *id.ID, delta decimal.Decimal) (*Item, error) {
	st, unlock, err := r.lock("ApplyReservedDelta")
	defer unlock()
	if err != nil {
		return nil, err
	}
	it, ok := st.items[itemKey(r.tenantID, productID, locationID)]
	if !ok {
		return nil, apperror.NewNotFound("stock item", productID)
	}
	it.ReservedQuantity = it.ReservedQuantity.Add(delta)
	cp := *it
	cp.Derive()
	return &cp, nil
}

func (r *memRepo) ListItems(_ context.Context, f ItemFilter) ([]Item, int, error) {
	items, total, err := r.listItems(f)
	if err == nil {
		r.store.runAfter("ListItems")
	}
	return items, total, err
}

func (r *memRepo) listItems(f ItemFilter) ([]Item, int, error) {
	st, unlock, err := r.lock("ListItems")
	defer unlock()
	if err != nil {
		return nil, 0, err
	}
	var out []Item
	for _, it := range st.items {
		if it.TenantID != r.tenantID || it.DeletionMark {
			continue
		}
		if f.ProductID != nil && it.ProductID != *f.ProductID {
			continue
		}
		if f.LocationID != nil && !id.Equal(it.LocationID, f.LocationID) {
			continue
		}
		if f.Search != "" && !r.itemMatches(st, it, f.Search) {
			continue
		}
		cp := *it
		cp.Derive()
		if f.LowStock && !cp.IsLowStock {
			continue
		}
		if f.OutOfStock && !cp.IsOutOfStock {
			continue
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if f.OrderBy == "quantity" {
			return out[i].Quantity.LessThan(out[j].Quantity)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return paginate(out, f.ListFilter)
}

// itemMatches mirrors the SQL search: product name, location name or code.
func (r *memRepo) itemMatches(st *memState, it *Item, search string) bool {
	needle := strings.ToLower(strings.TrimSpace(search))
	fields := []string{st.products[r.tenantID+"|"+it.ProductID.String()]}
	if it.LocationID != nil {
		if l, ok := st.locations[*it.LocationID]; ok {
			fields = append(fields, l.Name)
			if l.Code != nil {
				fields = append(fields, *l.Code)
			}
		}
	}
	for _, v := range fields {
		if v != "" && strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

func (r *memRepo) InsertMovement(_ context.Context, m *Movement) error {
	st, unlock, err := r.lock("InsertMovement")
	defer unlock()
	if err != nil {
		return err
	}
	st.movements = append(st.movements, *m)
	return nil
}

func (r *memRepo) ListMovements(_ context.Context, f MovementFilter) ([]Movement, int, error) {
	st, unlock, err := r.lock("ListMovements")
	defer unlock()
	if err != nil {
		return nil, 0, err
	}
	var out []Movement
	for _, m := range st.movements {
		if m.TenantID != r.tenantID {
			continue
		}
		if f.ProductID != nil && m.ProductID != *f.ProductID {
			continue
		}
		if f.Type != nil && m.Type != *f.Type {
			continue
		}
		if f.LocationID != nil && !id.Equal(m.LocationID, f.LocationID) && !id.Equal(m.DestinationLocationID, f.LocationID) {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(m.Reason), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, m)
	}
	if strings.HasPrefix(f.OrderBy, "-") {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return paginate(out, f.ListFilter)
}

func (r *memRepo) InsertReservation(_ context.Context, res *Reservation) error {
	st, unlock, err := r.lock("InsertReservation")
	defer unlock()
	if err != nil {
		return err
	}
	cp := *res
	st.reservations[res.ID] = &cp
	return nil
}

func (r *memRepo) getReservation(st *memState, reservationID id.ID) (*Reservation, error) {
	res, ok := st.reservations[reservationID]
	if !ok || res.TenantID != r.tenantID {
		return nil, apperror.NewNotFound("reservation", reservationID)
	}
	cp := *res
	return &cp, nil
}

func (r *memRepo) GetReservation(_ context.Context, reservationID id.ID) (*Reservation, error) {
	st, unlock, err := r.lock("GetReservation")
	defer unlock()
	if err != nil {
		return nil, err
	}
	return r.getReservation(st, reservationID)
}

func (r *memRepo) GetReservationForUpdate(_ context.Context, reservationID id.ID) (*Reservation, error) {
	st, unlock, err := r.lock("GetReservationForUpdate")
	defer unlock()
	if err != nil {
		return nil, err
	}
	return r.getReservation(st, reservationID)
}

func (r *memRepo) UpdateReservationStatus(_ context.Context, reservationID id.ID, status ReservationStatus, notes *string, at time.Time) error {
	st, unlock, err := r.lock("UpdateReservationStatus")
	defer unlock()
	if err != nil {
		return err
	}
	res, ok := st.reservations[reservationID]
	if !ok || res.TenantID != r.tenantID {
		return apperror.NewNotFound("reservation", reservationID)
	}
	res.Status = status
	if notes != nil {
		res.Notes = notes
	}
	res.UpdatedAt = at
	return nil
}

func (r *memRepo) ListReservations(_ context.Context, f ReservationFilter) ([]Reservation, int, error) {
	st, unlock, err := r.lock("ListReservations")
	defer unlock()
	if err != nil {
		return nil, 0, err
	}
	var out []Reservation
	for _, res := range st.reservations {
		if res.TenantID != r.tenantID {
			continue
		}
		if f.Status != nil && res.Status != *f.Status {
			continue
		}
		if f.ProductID != nil && res.ProductID != *f.ProductID {
			continue
		}
		out = append(out, *res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() > out[j].ID.String() })
	return paginate(out, f.ListFilter)
}

func (r *memRepo) LockExpiredReservations(_ context.Context, now time.Time, limit int) ([]Reservation, error) {
	st, unlock, err := r.lock("LockExpiredReservations")
	defer unlock()
	if err != nil {
		return nil, err
	}
	var out []Reservation
	for _, res := range st.reservations {
		if res.TenantID == r.tenantID && res.Status == ReservationActive &&
			res.ExpiresAt != nil && !res.ExpiresAt.After(now) && len(out) < limit {
			out = append(out, *res)
		}
	}
	return out, nil
}

func (r *memRepo) InsertLocation(_ context.Context, l *Location) error {
	st, unlock, err := r.lock("InsertLocation")
	defer unlock()
	if err != nil {
		return err
	}
	cp := *l
	st.locations[l.ID] = &cp
	return nil
}

func (r *memRepo) UpdateLocation(_ context.Context, l *Location) error {
	st, unlock, err := r.lock("UpdateLocation")
	defer unlock()
	if err != nil {
		return err
	}
	if cur, ok := st.locations[l.ID]; !ok || cur.TenantID != r.tenantID || cur.DeletionMark {
		return apperror.NewNotFound("location", l.ID)
	}
	cp := *l
	st.locations[l.ID] = &cp
	return nil
}

func (r *memRepo) GetLocation(_ context.Context, locationID id.ID) (*Location, error) {
	st, unlock, err := r.lock("GetLocation")
	defer unlock()
	if err != nil {
		return nil, err
	}
	l, ok := st.locations[locationID]
	if !ok || l.TenantID != r.tenantID || l.DeletionMark {
		return nil, apperror.NewNotFound("location", locationID)
	}
	cp := *l
	cp.TotalProducts = r.stocked(st, locationID)
	return &cp, nil
}

func (r *memRepo) ListLocations(_ context.Context, f LocationFilter) ([]Location, int, error) {
	st, unlock, err := r.lock("ListLocations")
	defer unlock()
	if err != nil {
		return nil, 0, err
	}
	var out []Location
	for _, l := range st.locations {
		if l.TenantID != r.tenantID || l.DeletionMark {
			continue
		}
		cp := *l
		cp.TotalProducts = r.stocked(st, l.ID)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return paginate(out, f.ListFilter)
}

func (r *memRepo) SoftDeleteLocation(_ context.Context, locationID id.ID, at time.Time) error {
	st, unlock, err := r.lock("SoftDeleteLocation")
	defer unlock()
	if err != nil {
		return err
	}
	l, ok := st.locations[locationID]
	if !ok || l.TenantID != r.tenantID {
		return apperror.NewNotFound("location", locationID)
	}
	l.DeletionMark = true
	l.UpdatedAt = at
	return nil
}

func (r *memRepo) CountStockedItems(_ context.Context, locationID id.ID) (int, error) {
	st, unlock, err := r.lock("CountStockedItems")
	defer unlock()
	if err != nil {
		return 0, err
	}
	return r.stocked(st, locationID), nil
}

func (r *memRepo) stocked(st *memState, locationID id.ID) int {
	n := 0
	for _, it := range st.items {
		if it.TenantID == r.tenantID && !it.DeletionMark && it.LocationID != nil && *it.LocationID == locationID &&
			(it.Quantity.IsPositive() || it.ReservedQuantity.IsPositive()) {
			n++
		}
	}
	return n
}

func (r *memRepo) Stats(_ context.Context, topN int) (*Stats, error) {
	stats, err := r.stats(topN)
	if err == nil {
		r.store.runAfter("Stats")
	}
	return stats, err
}

func (r *memRepo) stats(topN int) (*Stats, error) {
	st, unlock, err := r.lock("Stats")
	defer unlock()
	if err != nil {
		return nil, err
	}
	stats := &Stats{TotalValue: decimal.Zero}
	byProduct := map[id.ID]*ProductValue{}
	for _, it := range st.items {
		if it.TenantID != r.tenantID || it.DeletionMark {
			continue
		}
		cp := *it
		cp.Derive()
		stats.TotalItems++
		stats.TotalValue = stats.TotalValue.Add(cp.TotalValue)
		if cp.IsLowStock {
			stats.LowStockCount++
		}
		if cp.IsOutOfStock {
			stats.OutOfStockCount++
		}
		pv, ok := byProduct[cp.ProductID]
		if !ok {
			pv = &ProductValue{ProductID: cp.ProductID}
			byProduct[cp.ProductID] = pv
		}
		pv.Quantity = pv.Quantity.Add(cp.Quantity)
		pv.TotalValue = pv.TotalValue.Add(cp.TotalValue)
	}
	for _, pv := range byProduct {
		stats.TopProducts = append(stats.TopProducts, *pv)
	}
	sort.Slice(stats.TopProducts, func(i, j int) bool {
		return stats.TopProducts[i].TotalValue.GreaterThan(stats.TopProducts[j].TotalValue)
	})
	if len(stats.TopProducts) > topN {
		stats.TopProducts = stats.TopProducts[:topN]
	}
	for _, res := range st.reservations {
		if res.TenantID == r.tenantID && res.Status == ReservationActive {
			stats.ActiveReservations++
		}
	}
	for _, m := range st.movements {
		if m.TenantID == r.tenantID {
			stats.TotalMovements++
		}
	}
	return stats, nil
}

func paginate[T any](all []T, f ListFilter) ([]T, int, error) {
	total := len(all)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := total
	if f.Limit > 0 && f.Offset+f.Limit < end {
		end = f.Offset + f.Limit
	}
	return all[f.Offset:end], total, nil
}

// --- collaborators ---

type allowAll struct {
	mu    sync.Mutex
	deny  map[security.Action]bool
	calls []security.Action
}

func (o *allowAll) CheckPermission(_ context.Context, userID string, _ security.Resource, action security.Action) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, action)
	return userID != "" && !o.deny[action], nil
}

type memCache struct {
	mu          sync.Mutex
	entries     map[string]any
	gens        map[string]int64
	invalidated int
	dropped     int
}

func (c *memCache) Load(_ context.Context, tenantID, key string, dst any) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gen := c.gens[tenantID]
	v, ok := c.entries[tenantID+"|"+key]
	if !ok {
		return gen, false, nil
	}
	switch d := dst.(type) {
	case *Stats:
		*d = *(v.(*Stats))
	case *Dashboard:
		*d = *(v.(*Dashboard))
	default:
		return 0, false, errors.New("unsupported cache type")
	}
	return gen, true, nil
}

func (c *memCache) Store(_ context.Context, tenantID, key string, gen int64, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gens[tenantID] {
		c.dropped++
		return nil
	}
	if c.entries == nil {
		c.entries = map[string]any{}
	}
	c.entries[tenantID+"|"+key] = value
	return nil
}

func (c *memCache) Invalidate(_ context.Context, tenantID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, tenantID+"|") {
			delete(c.entries, k)
		}
	}
	if c.gens == nil {
		c.gens = map[string]int64{}
	}
	c.gens[tenantID]++
	c.invalidated++
	return nil
}

type memEvents struct {
	mu     sync.Mutex
	events []Event
}

func (e *memEvents) Publish(_ context.Context, ev Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

func (e *memEvents) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

type auditEntry struct {
	entityID id.ID
	action   string
	changes  map[string]any
}

type memAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *memAudit) LogChange(_ context.Context, _ string, entityID id.ID, action string, changes map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{entityID: entityID, action: action, changes: changes})
	return nil
}
