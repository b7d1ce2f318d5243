package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TypeResolver reports whether a concrete entity type belongs under an
// abstract type tag. The domain layer supplies its own classification;
// the default resolver only matches exact tags and the empty abstract type.
type TypeResolver func(entityType, abstractType string) bool

// defaultTypeResolver matches exact type tags. The empty abstract type
// matches everything.
func defaultTypeResolver(entityType, abstractType string) bool {
	return abstractType == "" || entityType == abstractType
}

// MemoryStore is a thread-safe in-memory implementation of EntityStore and
// SearchIndex. It backs the test suites and embedded single-process
// deployments; production installs plug a graph database behind the same
// interface.
type MemoryStore struct {
	mu        sync.RWMutex
	entities  map[string]*Entity
	relations map[string]*Relation
	resolver  TypeResolver
}

// NewMemoryStore creates an empty MemoryStore with the default type resolver.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities:  make(map[string]*Entity),
		relations: make(map[string]*Relation),
		resolver:  defaultTypeResolver,
	}
}

// WithTypeResolver replaces the abstract-type resolver and returns the store
// for chaining. Call before handing the store to services.
func (s *MemoryStore) WithTypeResolver(r TypeResolver) *MemoryStore {
	if r != nil {
		s.resolver = r
	}
	return s
}

// LoadEntityByID returns the entity with the given id.
func (s *MemoryStore) LoadEntityByID(ctx context.Context, id, abstractType string) (*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[id]
	if !ok || !s.resolver(e.EntityType, abstractType) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return copyEntity(e), nil
}

// ListEntities returns entities of the given types matching args.
func (s *MemoryStore) ListEntities(ctx context.Context, types []string, indexedFields []string, args ListArgs) ([]*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Entity
	for _, e := range s.entities {
		if !matchesTypes(e, types, s.resolver) {
			continue
		}
		if !s.matchesArgs(e, args) {
			continue
		}
		out = append(out, copyEntity(e))
	}

	sortEntities(out, args.OrderBy, args.OrderMode)

	if args.First > 0 && len(out) > args.First {
		out = out[:args.First]
	}
	return out, nil
}

// CreateEntity persists a new entity and returns the stored record.
func (s *MemoryStore) CreateEntity(ctx context.Context, actor string, attributes map[string]any, entityType string) (*Entity, error) {
	if entityType == "" {
		return nil, fmt.Errorf("%w: entity type is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	e := &Entity{
		ID:         uuid.NewString(),
		EntityType: entityType,
		Attributes: make(map[string]any, len(attributes)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for k, v := range attributes {
		e.Attributes[k] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[e.ID] = e
	return copyEntity(e), nil
}

// CreateRelation persists a single directed edge.
func (s *MemoryStore) CreateRelation(ctx context.Context, actor string, input Relation) (*Relation, error) {
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	r := input
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.relations[r.ID] = &r
	out := r
	return &out, nil
}

// CreateRelations persists a batch of edges in one bulk call. The batch is
// validated up front; either all edges are stored or none.
func (s *MemoryStore) CreateRelations(ctx context.Context, actor string, inputs []Relation) ([]*Relation, error) {
	for i := range inputs {
		if err := inputs[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	out := make([]*Relation, 0, len(inputs))
	for _, input := range inputs {
		r := input
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		r.CreatedAt = now
		s.relations[r.ID] = &r
		stored := r
		out = append(out, &stored)
	}
	return out, nil
}

// DeleteEntityByID removes the entity and every relation touching it.
func (s *MemoryStore) DeleteEntityByID(ctx context.Context, actor, id, abstractType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[id]
	if !ok || !s.resolver(e.EntityType, abstractType) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	delete(s.entities, id)
	for rid, r := range s.relations {
		if r.FromID == id || r.ToID == id {
			delete(s.relations, rid)
		}
	}
	return id, nil
}

// DeleteRelationsByFromAndTo removes all edges of the given type between the
// two entities. Missing edges are not an error.
func (s *MemoryStore) DeleteRelationsByFromAndTo(ctx context.Context, actor, fromID, toID, relationshipType, abstractType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for rid, r := range s.relations {
		if r.FromID == fromID && r.ToID == toID && r.RelationshipType == relationshipType {
			delete(s.relations, rid)
		}
	}
	return nil
}

// UpdateAttribute applies attribute patches in one logical write.
func (s *MemoryStore) UpdateAttribute(ctx context.Context, actor, id, abstractType string, patches []AttributePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[id]
	if !ok || !s.resolver(e.EntityType, abstractType) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	for _, p := range patches {
		if p.Key == "" {
			return fmt.Errorf("%w: patch key is required", ErrInvalidInput)
		}
		if e.Attributes == nil {
			e.Attributes = make(map[string]any)
		}
		switch len(p.Values) {
		case 0:
			delete(e.Attributes, p.Key)
		case 1:
			e.Attributes[p.Key] = p.Values[0]
		default:
			e.Attributes[p.Key] = p.Values
		}
	}
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// TimeSeriesEntities buckets entities of the given type by creation time.
func (s *MemoryStore) TimeSeriesEntities(ctx context.Context, entityType string, filters []TimeSeriesFilter, args TimeSeriesArgs) ([]TimeSeriesPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buckets := make(map[time.Time]int)
	for _, e := range s.entities {
		if !s.resolver(e.EntityType, entityType) {
			continue
		}
		if !args.StartDate.IsZero() && e.CreatedAt.Before(args.StartDate) {
			continue
		}
		if !args.EndDate.IsZero() && e.CreatedAt.After(args.EndDate) {
			continue
		}
		if !s.matchesRelationFilters(e.ID, filters) {
			continue
		}
		buckets[truncateToInterval(e.CreatedAt, args.Interval)]++
	}

	points := make([]TimeSeriesPoint, 0, len(buckets))
	for date, count := range buckets {
		points = append(points, TimeSeriesPoint{Date: date, Value: count})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points, nil
}

// Count implements SearchIndex over the in-memory entity set. The index
// argument is accepted for interface parity and ignored.
func (s *MemoryStore) Count(ctx context.Context, index string, args ListArgs) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, e := range s.entities {
		if !matchesTypes(e, args.Types, s.resolver) {
			continue
		}
		if !s.matchesArgs(e, args) {
			continue
		}
		if !args.EndDate.IsZero() && e.CreatedAt.After(args.EndDate) {
			continue
		}
		count++
	}
	return count, nil
}

// matchesRelationFilters reports whether the entity satisfies every
// relation-based time series filter. Must hold at least a read lock.
func (s *MemoryStore) matchesRelationFilters(entityID string, filters []TimeSeriesFilter) bool {
	for _, f := range filters {
		if !f.IsRelation {
			continue
		}
		found := false
		for _, r := range s.relations {
			if r.RelationshipType == f.Type &&
				(r.FromID == entityID && r.ToID == f.Value || r.ToID == entityID && r.FromID == f.Value) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// matchesArgs applies search and attribute filters.
func (s *MemoryStore) matchesArgs(e *Entity, args ListArgs) bool {
	if args.Search != "" {
		needle := strings.ToLower(args.Search)
		found := false
		for _, v := range e.Attributes {
			if sv, ok := v.(string); ok && strings.Contains(strings.ToLower(sv), needle) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	for _, f := range args.Filters {
		v, ok := e.Attributes[f.Key]
		if !ok {
			return false
		}
		sv, _ := v.(string)
		matched := len(f.Values) == 0
		for _, want := range f.Values {
			if sv == want {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func matchesTypes(e *Entity, types []string, resolver TypeResolver) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if resolver(e.EntityType, t) {
			return true
		}
	}
	return false
}

func sortEntities(entities []*Entity, orderBy, orderMode string) {
	if orderBy == "" {
		sort.Slice(entities, func(i, j int) bool {
			return entities[i].CreatedAt.Before(entities[j].CreatedAt)
		})
		return
	}

	desc := orderMode == "desc"
	sort.Slice(entities, func(i, j int) bool {
		vi, _ := entities[i].Attr(orderBy)
		vj, _ := entities[j].Attr(orderBy)
		if desc {
			return vi > vj
		}
		return vi < vj
	})
}

func truncateToInterval(t time.Time, interval string) time.Time {
	t = t.UTC()
	switch interval {
	case "year":
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	case "month":
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

func copyEntity(e *Entity) *Entity {
	out := *e
	out.Attributes = make(map[string]any, len(e.Attributes))
	for k, v := range e.Attributes {
		out.Attributes[k] = v
	}
	return &out
}
