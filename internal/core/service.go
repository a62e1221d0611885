package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/patrickmn/go-cache"

	"growcore/internal/infra/persistence/memory"
	"growcore/pkg/domain"
)

// DefaultActor is recorded on events when the caller does not name one.
const DefaultActor = "system"

// Service is the facility orchestrator. Every command runs as one store
// transaction: validate, mutate plants, batches, tags and occupancy, append
// events, then commit. Reads are served from the committed state.
type Service struct {
	store     PersistentStore
	logger    Logger
	clock     Clock
	metrics   MetricsRecorder
	tracer    Tracer
	publisher EventPublisher
	validate  *validator.Validate
	views     *cache.Cache
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	return newService(store, applyServiceOptions(opts))
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	o := applyServiceOptions(opts)
	store := memory.NewStore(engine, memory.WithClock(func() time.Time { return o.clock.Now().UTC() }))
	return newService(store, o)
}

func newService(store PersistentStore, o serviceOptions) *Service {
	s := &Service{
		store:     store,
		logger:    o.logger,
		clock:     o.clock,
		metrics:   o.metrics,
		tracer:    o.tracer,
		publisher: o.publisher,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
	if o.floorViewTTL > 0 {
		// No janitor goroutine: entries are keyed per floor and overwritten
		// when the store version moves on.
		s.views = cache.New(o.floorViewTTL, 0)
	}
	return s
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// CommandResult carries the fresh snapshot of every entity a command touched.
type CommandResult struct {
	Plant   *Plant       `json:"plant,omitempty"`
	Plants  []Plant      `json:"plants,omitempty"`
	Batches []PlantBatch `json:"plant_batches,omitempty"`
	Zones   []Zone       `json:"zones,omitempty"`
	Tags    []MetrcTag   `json:"metrc_tags,omitempty"`
	Harvest *Harvest     `json:"harvest,omitempty"`
	Events  []PlantEvent `json:"events"`
	// Result holds non-blocking rule findings from the commit.
	Result Result `json:"-"`

	touched touchSet
}

type touchSet struct {
	plants   []string
	batches  []string
	tags     []string
	harvests []string
	slots    []Coordinate
}

func appendUnique(list []string, id string) []string {
	for _, v := range list {
		if v == id {
			return list
		}
	}
	return append(list, id)
}

func (r *CommandResult) touchPlant(p Plant) {
	r.touched.plants = appendUnique(r.touched.plants, p.ID)
	if p.PlantBatchID != nil {
		r.touchBatch(*p.PlantBatchID)
	}
	if p.Tag != nil {
		r.touchTag(*p.Tag)
	}
	if p.Coordinate != nil {
		r.touchSlot(*p.Coordinate)
	}
}

func (r *CommandResult) touchBatch(id string) {
	r.touched.batches = appendUnique(r.touched.batches, id)
}

func (r *CommandResult) touchTag(serial string) {
	r.touched.tags = appendUnique(r.touched.tags, serial)
}

func (r *CommandResult) touchHarvest(id string) {
	r.touched.harvests = appendUnique(r.touched.harvests, id)
}

func (r *CommandResult) touchSlot(c Coordinate) {
	for _, existing := range r.touched.slots {
		if existing.SameSlot(c) {
			return
		}
	}
	r.touched.slots = append(r.touched.slots, c)
}

// materialize reads the final state of every touched entity from the
// transaction view.
func (r *CommandResult) materialize(view TransactionView) {
	for _, id := range r.touched.plants {
		if p, ok := view.FindPlant(id); ok {
			r.Plants = append(r.Plants, p)
		}
	}
	if len(r.Plants) > 0 {
		p := r.Plants[0]
		r.Plant = &p
	}
	for _, id := range r.touched.batches {
		if b, ok := view.FindPlantBatch(id); ok {
			r.Batches = append(r.Batches, b)
		}
	}
	for _, serial := range r.touched.tags {
		if t, ok := view.FindMetrcTag(serial); ok {
			r.Tags = append(r.Tags, t)
		}
	}
	for _, id := range r.touched.harvests {
		if h, ok := view.FindHarvest(id); ok {
			r.Harvest = &h
		}
	}
	for _, c := range r.touched.slots {
		room, ok := view.FindRoom(c.RoomID)
		if !ok {
			continue
		}
		spec, err := room.Layout.Resolve(c)
		if err != nil {
			continue
		}
		r.Zones = append(r.Zones, zoneFor(view, spec))
	}
}

// run wraps an operation with tracing, metrics and logging.
func (s *Service) run(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	started := s.clock.Now()
	err := fn(ctx)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, s.clock.Now().Sub(started))
	switch {
	case err == nil:
		s.logger.Debug("operation completed", "operation", op)
	case ErrorCode(err) != "":
		s.logger.Warn("operation rejected", "operation", op, "code", ErrorCode(err), "error", err)
	default:
		s.logger.Error("operation failed", "operation", op, "error", err)
	}
	return err
}

// command runs fn inside one transaction and publishes the appended events
// once the commit is visible.
func (s *Service) command(ctx context.Context, op string, fn func(tx Transaction, res *CommandResult) error) (CommandResult, error) {
	var out CommandResult
	err := s.run(ctx, op, func(ctx context.Context) error {
		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			out = CommandResult{}
			if err := fn(tx, &out); err != nil {
				return err
			}
			out.materialize(tx.Snapshot())
			return nil
		})
		out.Result = res
		return err
	})
	if err != nil {
		return CommandResult{}, err
	}
	if out.Events == nil {
		out.Events = []PlantEvent{}
	}
	s.logger.Info("command committed", "operation", op, "events", len(out.Events))
	s.publish(ctx, op, out.Events)
	return out, nil
}

func (s *Service) publish(ctx context.Context, op string, events []PlantEvent) {
	if len(events) == 0 {
		return
	}
	err := s.publisher.Publish(ctx, events)
	if obs, ok := s.metrics.(PublishObserver); ok {
		obs.ObservePublish(ctx, len(events), err)
	}
	if err != nil {
		s.logger.Error("event publish failed", "operation", op, "events", len(events), "error", err)
	}
}

// appendEvent stamps the actor and records the stored event on the result.
func appendEvent(tx Transaction, res *CommandResult, actor string, e PlantEvent) error {
	e.Actor = actorOrDefault(actor)
	stored, err := tx.AppendEvent(e)
	if err != nil {
		return fmt.Errorf("append %s event: %w", e.EventType, err)
	}
	res.Events = append(res.Events, stored)
	return nil
}

func actorOrDefault(actor string) string {
	if a := strings.TrimSpace(actor); a != "" {
		return a
	}
	return DefaultActor
}

// check validates a command input against its struct tags.
func (s *Service) check(in any) error {
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

// view runs fn against committed state inside a traced read operation.
func (s *Service) view(ctx context.Context, op string, fn func(TransactionView) error) error {
	return s.run(ctx, op, func(ctx context.Context) error {
		return s.store.View(ctx, fn)
	})
}
