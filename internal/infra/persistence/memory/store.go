// Package memory provides an in-memory implementation of the core persistence
// store used for tests, ephemeral environments, and as the transactional
// engine underneath the durable drivers.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"growcore/pkg/domain"

	"github.com/google/uuid"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Facility aliases domain.Facility for in-memory persistence operations.
	Facility = domain.Facility
	// Room aliases domain.Room.
	Room = domain.Room
	// Strain aliases domain.Strain.
	Strain = domain.Strain
	// PlantBatch aliases domain.PlantBatch.
	PlantBatch = domain.PlantBatch
	// Plant aliases domain.Plant.
	Plant = domain.Plant
	// MetrcTag aliases domain.MetrcTag.
	MetrcTag = domain.MetrcTag
	// Harvest aliases domain.Harvest.
	Harvest = domain.Harvest
	// PlantEvent aliases domain.PlantEvent.
	PlantEvent = domain.PlantEvent
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// Bucket names used by Snapshot and by durable drivers as their storage keys.
const (
	BucketFacilities = "facilities"
	BucketRooms      = "rooms"
	BucketStrains    = "strains"
	BucketBatches    = "plant_batches"
	BucketPlants     = "plants"
	BucketTags       = "metrc_tags"
	BucketHarvests   = "harvests"
)

// Buckets lists every keyed entity bucket. Events are stored separately as an
// append-only log.
var Buckets = []string{
	BucketFacilities,
	BucketRooms,
	BucketStrains,
	BucketBatches,
	BucketPlants,
	BucketTags,
	BucketHarvests,
}

// memoryState is never mutated in place once committed. A transaction copies
// the struct and clones an entity map the first time it writes to it.
type memoryState struct {
	facilities map[string]Facility
	rooms      map[string]Room
	strains    map[string]Strain
	batches    map[string]PlantBatch
	plants     map[string]Plant
	tags       map[string]MetrcTag
	harvests   map[string]Harvest

	// derived indexes; slices are replaced, never appended in place
	slots   map[string][]string
	members map[string][]string

	events []PlantEvent
	seq    uint64
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Facilities map[string]Facility   `json:"facilities"`
	Rooms      map[string]Room       `json:"rooms"`
	Strains    map[string]Strain     `json:"strains"`
	Batches    map[string]PlantBatch `json:"plant_batches"`
	Plants     map[string]Plant      `json:"plants"`
	Tags       map[string]MetrcTag   `json:"metrc_tags"`
	Harvests   map[string]Harvest    `json:"harvests"`
	Events     []PlantEvent          `json:"events"`
}

// Target returns a pointer to the snapshot field backing bucket, for decoding.
func (s *Snapshot) Target(bucket string) (any, bool) {
	switch bucket {
	case BucketFacilities:
		return &s.Facilities, true
	case BucketRooms:
		return &s.Rooms, true
	case BucketStrains:
		return &s.Strains, true
	case BucketBatches:
		return &s.Batches, true
	case BucketPlants:
		return &s.Plants, true
	case BucketTags:
		return &s.Tags, true
	case BucketHarvests:
		return &s.Harvests, true
	}
	return nil, false
}

// Value returns the snapshot field backing bucket, for encoding.
func (s Snapshot) Value(bucket string) (any, bool) {
	switch bucket {
	case BucketFacilities:
		return s.Facilities, true
	case BucketRooms:
		return s.Rooms, true
	case BucketStrains:
		return s.Strains, true
	case BucketBatches:
		return s.Batches, true
	case BucketPlants:
		return s.Plants, true
	case BucketTags:
		return s.Tags, true
	case BucketHarvests:
		return s.Harvests, true
	}
	return nil, false
}

func newMemoryState() memoryState {
	return memoryState{
		facilities: make(map[string]Facility),
		rooms:      make(map[string]Room),
		strains:    make(map[string]Strain),
		batches:    make(map[string]PlantBatch),
		plants:     make(map[string]Plant),
		tags:       make(map[string]MetrcTag),
		harvests:   make(map[string]Harvest),
		slots:      make(map[string][]string),
		members:    make(map[string][]string),
	}
}

func cloneMap[T any](in map[string]T, clone func(T) T) map[string]T {
	out := make(map[string]T, len(in))
	for k, v := range in {
		out[k] = clone(v)
	}
	return out
}

func identity[T any](v T) T { return v }

func snapshotFromMemoryState(state memoryState) Snapshot {
	events := make([]PlantEvent, len(state.events))
	for i, e := range state.events {
		events[i] = e.Clone()
	}
	return Snapshot{
		Facilities: cloneMap(state.facilities, identity[Facility]),
		Rooms:      cloneMap(state.rooms, cloneRoom),
		Strains:    cloneMap(state.strains, identity[Strain]),
		Batches:    cloneMap(state.batches, cloneBatch),
		Plants:     cloneMap(state.plants, clonePlant),
		Tags:       cloneMap(state.tags, cloneTag),
		Harvests:   cloneMap(state.harvests, identity[Harvest]),
		Events:     events,
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	state.facilities = cloneMap(s.Facilities, identity[Facility])
	state.rooms = cloneMap(s.Rooms, cloneRoom)
	state.strains = cloneMap(s.Strains, identity[Strain])
	state.batches = cloneMap(s.Batches, cloneBatch)
	state.plants = cloneMap(s.Plants, clonePlant)
	state.tags = cloneMap(s.Tags, cloneTag)
	state.harvests = cloneMap(s.Harvests, identity[Harvest])
	state.events = make([]PlantEvent, len(s.Events))
	for i, e := range s.Events {
		state.events[i] = e.Clone()
		if e.Seq > state.seq {
			state.seq = e.Seq
		}
	}
	for id, p := range state.plants {
		if p.Coordinate != nil && p.IsActive() {
			key := p.Coordinate.Key()
			state.slots[key] = append(state.slots[key], id)
		}
		if p.PlantBatchID != nil {
			state.members[*p.PlantBatchID] = append(state.members[*p.PlantBatchID], id)
		}
	}
	return state
}

// migrateSnapshot normalises snapshots written by older builds: nil buckets
// are initialised, missing enum values get their defaults, events are put in
// sequence order and batch counts are re-derived from member plants.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Facilities == nil {
		snapshot.Facilities = map[string]Facility{}
	}
	if snapshot.Rooms == nil {
		snapshot.Rooms = map[string]Room{}
	}
	if snapshot.Strains == nil {
		snapshot.Strains = map[string]Strain{}
	}
	if snapshot.Batches == nil {
		snapshot.Batches = map[string]PlantBatch{}
	}
	if snapshot.Plants == nil {
		snapshot.Plants = map[string]Plant{}
	}
	if snapshot.Tags == nil {
		snapshot.Tags = map[string]MetrcTag{}
	}
	if snapshot.Harvests == nil {
		snapshot.Harvests = map[string]Harvest{}
	}

	for id, room := range snapshot.Rooms {
		if _, ok := snapshot.Facilities[room.FacilityID]; !ok {
			delete(snapshot.Rooms, id)
		}
	}

	active := make(map[string]int)
	for id, p := range snapshot.Plants {
		if p.Status == "" {
			p.Status = domain.PlantStatusActive
		}
		if p.Phase == "" {
			p.Phase = domain.PhaseImmature
		}
		if !p.IsActive() {
			p.Coordinate = nil
			p.Tag = nil
		}
		if p.Coordinate != nil {
			if _, ok := snapshot.Rooms[p.Coordinate.RoomID]; !ok {
				p.Coordinate = nil
			}
		}
		snapshot.Plants[id] = p
		if p.PlantBatchID != nil && p.IsActive() {
			active[*p.PlantBatchID]++
		}
	}
	for id, b := range snapshot.Batches {
		b.ActivePlantCount = active[id]
		snapshot.Batches[id] = b
	}

	for serial, tag := range snapshot.Tags {
		if tag.Tag == "" {
			tag.Tag = serial
		}
		if tag.Status == "" {
			tag.Status = domain.TagStatusAvailable
		}
		if tag.TagType == "" {
			tag.TagType = domain.TagTypePlant
		}
		snapshot.Tags[serial] = tag
	}

	for id, h := range snapshot.Harvests {
		if h.Status == "" {
			h.Status = domain.HarvestStatusActive
			snapshot.Harvests[id] = h
		}
	}

	slices.SortStableFunc(snapshot.Events, func(a, b PlantEvent) int { return cmp.Compare(a.Seq, b.Seq) })
	return snapshot
}

func cloneRoom(r Room) Room {
	cp := r
	if r.Layout.ZoneCapacities != nil {
		cp.Layout.ZoneCapacities = make(map[string]int, len(r.Layout.ZoneCapacities))
		for k, v := range r.Layout.ZoneCapacities {
			cp.Layout.ZoneCapacities[k] = v
		}
	}
	if r.Layout.Racks != nil {
		cp.Layout.Racks = make([]domain.Rack, len(r.Layout.Racks))
		for i, rack := range r.Layout.Racks {
			rack.Trays = append([]domain.Tray(nil), rack.Trays...)
			cp.Layout.Racks[i] = rack
		}
	}
	return cp
}

func cloneBatch(b PlantBatch) PlantBatch {
	cp := b
	cp.Notes = cloneString(b.Notes)
	return cp
}

func clonePlant(p Plant) Plant {
	cp := p
	cp.PlantBatchID = cloneString(p.PlantBatchID)
	cp.Tag = cloneString(p.Tag)
	cp.Label = cloneString(p.Label)
	cp.HarvestID = cloneString(p.HarvestID)
	cp.DestroyReason = cloneString(p.DestroyReason)
	if p.Coordinate != nil {
		c := *p.Coordinate
		cp.Coordinate = &c
	}
	return cp
}

func cloneTag(t MetrcTag) MetrcTag {
	cp := t
	cp.PlantID = cloneString(t.PlantID)
	return cp
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// CommitHook runs after rules pass and before a transaction becomes visible.
// Returning an error discards the transaction.
type CommitHook func(ctx context.Context, commit Commit) error

// Commit describes the writes of a transaction that is about to be published.
type Commit struct {
	Version uint64
	// Buckets holds the full post-commit contents of every bucket the
	// transaction wrote to, keyed by bucket name.
	Buckets map[string]any
	// Events holds the events appended by the transaction in sequence order.
	Events []PlantEvent
}

// Option configures a Store.
type Option func(*Store)

// WithCommitHook installs a hook that durable drivers use to persist commits.
func WithCommitHook(hook CommitHook) Option {
	return func(s *Store) { s.hook = hook }
}

// WithClock overrides the time source used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu      sync.RWMutex
	state   memoryState
	engine  *RulesEngine
	nowFn   func() time.Time
	hook    CommitHook
	version uint64
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) newID() string {
	return uuid.NewString()
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
	s.version++
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// Version returns the number of state changes made visible so far.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

// transaction represents a mutation set applied to a private copy of the store state.
type transaction struct {
	store      *Store
	state      memoryState
	dirty      map[string]bool
	changes    []Change
	eventStart int
	now        time.Time
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store:      s,
		state:      s.state,
		dirty:      make(map[string]bool),
		eventStart: len(s.state.events),
		now:        s.nowFn(),
	}
	// Appends may land in spare capacity of the committed slice; committed
	// readers are bounded by their own length and a discarded transaction is
	// overwritten by the next one.

	if err := fn(tx); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if s.hook != nil && (len(tx.dirty) > 0 || len(tx.state.events) > tx.eventStart) {
		if err := s.hook(ctx, tx.commit(s.version+1)); err != nil {
			return result, fmt.Errorf("persist commit: %w", err)
		}
	}

	s.state = tx.state
	s.version++
	return result, nil
}

func (tx *transaction) commit(version uint64) Commit {
	snap := Snapshot{
		Facilities: tx.state.facilities,
		Rooms:      tx.state.rooms,
		Strains:    tx.state.strains,
		Batches:    tx.state.batches,
		Plants:     tx.state.plants,
		Tags:       tx.state.tags,
		Harvests:   tx.state.harvests,
	}
	buckets := make(map[string]any, len(tx.dirty))
	for bucket := range tx.dirty {
		if v, ok := snap.Value(bucket); ok {
			buckets[bucket] = v
		}
	}
	events := append([]PlantEvent(nil), tx.state.events[tx.eventStart:]...)
	return Commit{Version: version, Buckets: buckets, Events: events}
}

// View executes fn against the committed state. The read lock is held while
// fn runs, so fn must not start a transaction.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := s.state
	return fn(newTransactionView(&state))
}

// touch clones a bucket before its first write in this transaction.
func (tx *transaction) touch(bucket string) {
	if tx.dirty[bucket] {
		return
	}
	tx.dirty[bucket] = true
	switch bucket {
	case BucketFacilities:
		tx.state.facilities = cloneMap(tx.state.facilities, identity[Facility])
	case BucketRooms:
		tx.state.rooms = cloneMap(tx.state.rooms, identity[Room])
	case BucketStrains:
		tx.state.strains = cloneMap(tx.state.strains, identity[Strain])
	case BucketBatches:
		tx.state.batches = cloneMap(tx.state.batches, identity[PlantBatch])
	case BucketPlants:
		tx.state.plants = cloneMap(tx.state.plants, identity[Plant])
		tx.state.slots = cloneMap(tx.state.slots, identity[[]string])
		tx.state.members = cloneMap(tx.state.members, identity[[]string])
	case BucketTags:
		tx.state.tags = cloneMap(tx.state.tags, identity[MetrcTag])
	case BucketHarvests:
		tx.state.harvests = cloneMap(tx.state.harvests, identity[Harvest])
	}
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// Now returns the timestamp shared by every record written in this transaction.
func (tx *transaction) Now() time.Time { return tx.now }

func (tx *transaction) stamp(base *domain.Base) {
	if base.ID == "" {
		base.ID = tx.store.newID()
	}
	base.CreatedAt = tx.now
	base.UpdatedAt = tx.now
}

// CreateFacility stores a new facility.
func (tx *transaction) CreateFacility(f Facility) (Facility, error) {
	tx.stamp(&f.Base)
	if _, exists := tx.state.facilities[f.ID]; exists {
		return Facility{}, fmt.Errorf("facility %q already exists", f.ID)
	}
	tx.touch(BucketFacilities)
	tx.state.facilities[f.ID] = f
	tx.recordChange(Change{Entity: domain.EntityFacility, Action: domain.ActionCreate, After: f})
	return f, nil
}

// CreateRoom stores a new room after validating its layout.
func (tx *transaction) CreateRoom(r Room) (Room, error) {
	if _, ok := tx.state.facilities[r.FacilityID]; !ok {
		return Room{}, domain.NotFoundError{Entity: domain.EntityFacility, ID: r.FacilityID}
	}
	if err := r.Layout.Validate(); err != nil {
		return Room{}, err
	}
	tx.stamp(&r.Base)
	if _, exists := tx.state.rooms[r.ID]; exists {
		return Room{}, fmt.Errorf("room %q already exists", r.ID)
	}
	r = cloneRoom(r)
	tx.touch(BucketRooms)
	tx.state.rooms[r.ID] = r
	tx.recordChange(Change{Entity: domain.EntityRoom, Action: domain.ActionCreate, After: cloneRoom(r)})
	return cloneRoom(r), nil
}

// CreateStrain stores a new strain.
func (tx *transaction) CreateStrain(st Strain) (Strain, error) {
	tx.stamp(&st.Base)
	if _, exists := tx.state.strains[st.ID]; exists {
		return Strain{}, fmt.Errorf("strain %q already exists", st.ID)
	}
	tx.touch(BucketStrains)
	tx.state.strains[st.ID] = st
	tx.recordChange(Change{Entity: domain.EntityStrain, Action: domain.ActionCreate, After: st})
	return st, nil
}

// UpdateStrain mutates a strain using the provided mutator function.
func (tx *transaction) UpdateStrain(id string, mutator func(*Strain) error) (Strain, error) {
	current, ok := tx.state.strains[id]
	if !ok {
		return Strain{}, domain.NotFoundError{Entity: domain.EntityStrain, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return Strain{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.touch(BucketStrains)
	tx.state.strains[id] = current
	tx.recordChange(Change{Entity: domain.EntityStrain, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// CreatePlantBatch stores a new plant batch.
func (tx *transaction) CreatePlantBatch(b PlantBatch) (PlantBatch, error) {
	if _, ok := tx.state.strains[b.StrainID]; !ok {
		return PlantBatch{}, domain.NotFoundError{Entity: domain.EntityStrain, ID: b.StrainID}
	}
	tx.stamp(&b.Base)
	if _, exists := tx.state.batches[b.ID]; exists {
		return PlantBatch{}, fmt.Errorf("plant batch %q already exists", b.ID)
	}
	b = cloneBatch(b)
	tx.touch(BucketBatches)
	tx.state.batches[b.ID] = b
	tx.recordChange(Change{Entity: domain.EntityPlantBatch, Action: domain.ActionCreate, After: cloneBatch(b)})
	return cloneBatch(b), nil
}

// UpdatePlantBatch mutates a plant batch using the provided mutator function.
func (tx *transaction) UpdatePlantBatch(id string, mutator func(*PlantBatch) error) (PlantBatch, error) {
	current, ok := tx.state.batches[id]
	if !ok {
		return PlantBatch{}, domain.NotFoundError{Entity: domain.EntityPlantBatch, ID: id}
	}
	before := cloneBatch(current)
	current = cloneBatch(current)
	if err := mutator(&current); err != nil {
		return PlantBatch{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.touch(BucketBatches)
	tx.state.batches[id] = current
	tx.recordChange(Change{Entity: domain.EntityPlantBatch, Action: domain.ActionUpdate, Before: before, After: cloneBatch(current)})
	return cloneBatch(current), nil
}

// CreatePlant stores a new plant and indexes its slot and batch.
func (tx *transaction) CreatePlant(p Plant) (Plant, error) {
	if p.PlantBatchID != nil {
		if _, ok := tx.state.batches[*p.PlantBatchID]; !ok {
			return Plant{}, domain.NotFoundError{Entity: domain.EntityPlantBatch, ID: *p.PlantBatchID}
		}
	}
	if p.Coordinate != nil {
		if _, ok := tx.state.rooms[p.Coordinate.RoomID]; !ok {
			return Plant{}, domain.NotFoundError{Entity: domain.EntityRoom, ID: p.Coordinate.RoomID}
		}
	}
	tx.stamp(&p.Base)
	if _, exists := tx.state.plants[p.ID]; exists {
		return Plant{}, fmt.Errorf("plant %q already exists", p.ID)
	}
	if p.Status == "" {
		p.Status = domain.PlantStatusActive
	}
	p = clonePlant(p)
	tx.touch(BucketPlants)
	tx.state.plants[p.ID] = p
	tx.reindex(nil, &p)
	tx.recordChange(Change{Entity: domain.EntityPlant, Action: domain.ActionCreate, After: clonePlant(p)})
	return clonePlant(p), nil
}

// UpdatePlant mutates a plant and keeps the slot and batch indexes in step.
func (tx *transaction) UpdatePlant(id string, mutator func(*Plant) error) (Plant, error) {
	current, ok := tx.state.plants[id]
	if !ok {
		return Plant{}, domain.NotFoundError{Entity: domain.EntityPlant, ID: id}
	}
	before := clonePlant(current)
	current = clonePlant(current)
	if err := mutator(&current); err != nil {
		return Plant{}, err
	}
	if current.Coordinate != nil {
		if _, ok := tx.state.rooms[current.Coordinate.RoomID]; !ok {
			return Plant{}, domain.NotFoundError{Entity: domain.EntityRoom, ID: current.Coordinate.RoomID}
		}
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.touch(BucketPlants)
	tx.state.plants[id] = current
	tx.reindex(&before, &current)
	tx.recordChange(Change{Entity: domain.EntityPlant, Action: domain.ActionUpdate, Before: before, After: clonePlant(current)})
	return clonePlant(current), nil
}

func occupiedSlot(p *Plant) string {
	if p == nil || p.Coordinate == nil || !p.IsActive() {
		return ""
	}
	return p.Coordinate.Key()
}

func batchOf(p *Plant) string {
	if p == nil || p.PlantBatchID == nil {
		return ""
	}
	return *p.PlantBatchID
}

func (tx *transaction) reindex(before, after *Plant) {
	id := after.ID
	if from, to := occupiedSlot(before), occupiedSlot(after); from != to {
		if from != "" {
			tx.state.slots[from] = without(tx.state.slots[from], id)
			if len(tx.state.slots[from]) == 0 {
				delete(tx.state.slots, from)
			}
		}
		if to != "" {
			tx.state.slots[to] = with(tx.state.slots[to], id)
		}
	}
	if from, to := batchOf(before), batchOf(after); from != to {
		if from != "" {
			tx.state.members[from] = without(tx.state.members[from], id)
		}
		if to != "" {
			tx.state.members[to] = with(tx.state.members[to], id)
		}
	}
}

func with(ids []string, id string) []string {
	out := make([]string, 0, len(ids)+1)
	out = append(out, ids...)
	return append(out, id)
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// CreateMetrcTag stores a new tag keyed by its serial.
func (tx *transaction) CreateMetrcTag(t MetrcTag) (MetrcTag, error) {
	serial, err := domain.NormalizeTag(t.Tag)
	if err != nil {
		return MetrcTag{}, err
	}
	t.Tag = serial
	if _, exists := tx.state.tags[serial]; exists {
		return MetrcTag{}, fmt.Errorf("%w: %s", domain.ErrTagDuplicate, serial)
	}
	tx.stamp(&t.Base)
	if t.Status == "" {
		t.Status = domain.TagStatusAvailable
	}
	if t.TagType == "" {
		t.TagType = domain.TagTypePlant
	}
	t = cloneTag(t)
	tx.touch(BucketTags)
	tx.state.tags[serial] = t
	tx.recordChange(Change{Entity: domain.EntityMetrcTag, Action: domain.ActionCreate, After: cloneTag(t)})
	return cloneTag(t), nil
}

// UpdateMetrcTag mutates a tag identified by its serial.
func (tx *transaction) UpdateMetrcTag(serial string, mutator func(*MetrcTag) error) (MetrcTag, error) {
	current, ok := tx.state.tags[serial]
	if !ok {
		return MetrcTag{}, domain.NotFoundError{Entity: domain.EntityMetrcTag, ID: serial}
	}
	before := cloneTag(current)
	current = cloneTag(current)
	if err := mutator(&current); err != nil {
		return MetrcTag{}, err
	}
	current.Tag = serial
	current.ID = before.ID
	current.UpdatedAt = tx.now
	tx.touch(BucketTags)
	tx.state.tags[serial] = current
	tx.recordChange(Change{Entity: domain.EntityMetrcTag, Action: domain.ActionUpdate, Before: before, After: cloneTag(current)})
	return cloneTag(current), nil
}

// CreateHarvest stores a new harvest.
func (tx *transaction) CreateHarvest(h Harvest) (Harvest, error) {
	tx.stamp(&h.Base)
	if _, exists := tx.state.harvests[h.ID]; exists {
		return Harvest{}, fmt.Errorf("harvest %q already exists", h.ID)
	}
	if h.Status == "" {
		h.Status = domain.HarvestStatusActive
	}
	if h.HarvestedAt.IsZero() {
		h.HarvestedAt = tx.now
	}
	tx.touch(BucketHarvests)
	tx.state.harvests[h.ID] = h
	tx.recordChange(Change{Entity: domain.EntityHarvest, Action: domain.ActionCreate, After: h})
	return h, nil
}

// UpdateHarvest mutates a harvest using the provided mutator function.
func (tx *transaction) UpdateHarvest(id string, mutator func(*Harvest) error) (Harvest, error) {
	current, ok := tx.state.harvests[id]
	if !ok {
		return Harvest{}, domain.NotFoundError{Entity: domain.EntityHarvest, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return Harvest{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.touch(BucketHarvests)
	tx.state.harvests[id] = current
	tx.recordChange(Change{Entity: domain.EntityHarvest, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// AppendEvent assigns the next sequence number and appends the event.
func (tx *transaction) AppendEvent(e PlantEvent) (PlantEvent, error) {
	if err := e.Validate(); err != nil {
		return PlantEvent{}, err
	}
	if e.ID == "" {
		e.ID = tx.store.newID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = tx.now
	}
	tx.state.seq++
	e.Seq = tx.state.seq
	e = e.Clone()
	tx.state.events = append(tx.state.events, e)
	tx.recordChange(Change{Entity: domain.EntityPlantEvent, Action: domain.ActionAppend, After: e.Clone()})
	return e.Clone(), nil
}

// transactionView exposes a read-only snapshot of state to rules and queries.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

func sortedValues[T any](m map[string]T, clone func(T) T, base func(T) domain.Base) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, clone(v))
	}
	slices.SortFunc(out, func(a, b T) int {
		ba, bb := base(a), base(b)
		if c := ba.CreatedAt.Compare(bb.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(ba.ID, bb.ID)
	})
	return out
}

func find[T any](m map[string]T, id string, clone func(T) T) (T, bool) {
	v, ok := m[id]
	if !ok {
		var zero T
		return zero, false
	}
	return clone(v), true
}

// ListFacilities returns all facilities in creation order.
func (v transactionView) ListFacilities() []Facility {
	return sortedValues(v.state.facilities, identity[Facility], func(f Facility) domain.Base { return f.Base })
}

// FindFacility retrieves a facility by ID.
func (v transactionView) FindFacility(id string) (Facility, bool) {
	return find(v.state.facilities, id, identity[Facility])
}

// ListRooms returns all rooms in creation order.
func (v transactionView) ListRooms() []Room {
	return sortedValues(v.state.rooms, cloneRoom, func(r Room) domain.Base { return r.Base })
}

// FindRoom retrieves a room by ID.
func (v transactionView) FindRoom(id string) (Room, bool) {
	return find(v.state.rooms, id, cloneRoom)
}

// ListStrains returns all strains in creation order.
func (v transactionView) ListStrains() []Strain {
	return sortedValues(v.state.strains, identity[Strain], func(s Strain) domain.Base { return s.Base })
}

// FindStrain retrieves a strain by ID.
func (v transactionView) FindStrain(id string) (Strain, bool) {
	return find(v.state.strains, id, identity[Strain])
}

// ListPlantBatches returns all batches in creation order.
func (v transactionView) ListPlantBatches() []PlantBatch {
	return sortedValues(v.state.batches, cloneBatch, func(b PlantBatch) domain.Base { return b.Base })
}

// FindPlantBatch retrieves a batch by ID.
func (v transactionView) FindPlantBatch(id string) (PlantBatch, bool) {
	return find(v.state.batches, id, cloneBatch)
}

// ListPlants returns all plants in creation order.
func (v transactionView) ListPlants() []Plant {
	return sortedValues(v.state.plants, clonePlant, func(p Plant) domain.Base { return p.Base })
}

// FindPlant retrieves a plant by ID.
func (v transactionView) FindPlant(id string) (Plant, bool) {
	return find(v.state.plants, id, clonePlant)
}

func (v transactionView) plantsByID(ids []string) []Plant {
	out := make([]Plant, 0, len(ids))
	for _, id := range ids {
		if p, ok := v.state.plants[id]; ok {
			out = append(out, clonePlant(p))
		}
	}
	return out
}

// PlantsAt returns the active plants occupying a slot, in placement order.
func (v transactionView) PlantsAt(slotKey string) []Plant {
	return v.plantsByID(v.state.slots[slotKey])
}

// PlantsInBatch returns every plant referencing the batch.
func (v transactionView) PlantsInBatch(batchID string) []Plant {
	return v.plantsByID(v.state.members[batchID])
}

// ListMetrcTags returns all tags ordered by serial.
func (v transactionView) ListMetrcTags() []MetrcTag {
	out := make([]MetrcTag, 0, len(v.state.tags))
	for _, t := range v.state.tags {
		out = append(out, cloneTag(t))
	}
	slices.SortFunc(out, func(a, b MetrcTag) int { return cmp.Compare(a.Tag, b.Tag) })
	return out
}

// FindMetrcTag retrieves a tag by serial.
func (v transactionView) FindMetrcTag(serial string) (MetrcTag, bool) {
	return find(v.state.tags, serial, cloneTag)
}

// ListHarvests returns all harvests in creation order.
func (v transactionView) ListHarvests() []Harvest {
	return sortedValues(v.state.harvests, identity[Harvest], func(h Harvest) domain.Base { return h.Base })
}

// FindHarvest retrieves a harvest by ID.
func (v transactionView) FindHarvest(id string) (Harvest, bool) {
	return find(v.state.harvests, id, identity[Harvest])
}

// Events returns the event log in sequence order.
func (v transactionView) Events() []PlantEvent {
	return v.state.events[:len(v.state.events):len(v.state.events)]
}

// Read helpers ---------------------------------------------------------------

// GetPlant retrieves a plant by ID from committed state.
func (s *Store) GetPlant(id string) (Plant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.state.plants, id, clonePlant)
}

// ListPlants returns all plants from committed state.
func (s *Store) ListPlants() []Plant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListPlants()
}

// GetMetrcTag retrieves a tag by serial from committed state.
func (s *Store) GetMetrcTag(serial string) (MetrcTag, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.state.tags, serial, cloneTag)
}

// EventCount returns the number of committed events.
func (s *Store) EventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.events)
}
