package models

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/akpande2/bom-buddy-factory-sub000/config"
	"github.com/akpande2/bom-buddy-factory-sub000/storage"
	"github.com/akpande2/bom-buddy-factory-sub000/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Entity is a record kept in a Collection. T is the entity's own (value) type.
type Entity[T any] interface {
	GetId() string
	WithId(id string) T
	// Normalized trims and coerces user input.
	Normalized() T
	Validate() error
}

type CollectionOptions[T any] struct {
	Logger        *logrus.Logger
	Publisher     config.EventPublisher
	ReferenceType string
	// Prepare runs on Add, after normalization and before validation.
	Prepare func(T) T
	// GuardPatch can refuse an Update patch before it is merged.
	GuardPatch func(patch map[string]any) error
}

// errNoChange aborts a mutation without writing.
var errNoChange = errors.New("no change")

// Collection is one entity list persisted as a single JSON value under key.
// Every mutation rewrites the whole list.
type Collection[T Entity[T]] struct {
	key    string
	kv     storage.KV
	opts   CollectionOptions[T]
	logger *logrus.Logger

	mu          sync.RWMutex
	items       []T
	lastWritten []byte

	obsMu     sync.Mutex
	observers map[int]func([]T)
	nextObs   int

	cancelKV func()
}

// OpenCollection loads key from kv and keeps the collection in step with writes from other instances.
func OpenCollection[T Entity[T]](ctx context.Context, kv storage.KV, key string, opts CollectionOptions[T]) (*Collection[T], error) {
	logger := opts.Logger
	if logger == nil {
		logger = config.GetLogger()
	}
	if opts.ReferenceType == "" {
		opts.ReferenceType = key
	}
	c := &Collection[T]{
		key:       key,
		kv:        kv,
		opts:      opts,
		logger:    logger,
		observers: make(map[int]func([]T)),
	}

	c.mu.Lock()
	err := c.refreshLocked(ctx)
	c.mu.Unlock()
	if err != nil {
		config.LogError(logger, "models", "OpenCollection", key, nil, err)
		return nil, err
	}
	c.cancelKV = kv.Subscribe(c.onChange)
	return c, nil
}

func (c *Collection[T]) Key() string { return c.key }

// refreshLocked re-reads the stored value when it differs from what this collection last saw.
func (c *Collection[T]) refreshLocked(ctx context.Context) error {
	_, err := c.reloadLocked(ctx)
	return err
}

func (c *Collection[T]) reloadLocked(ctx context.Context) (bool, error) {
	raw, ok, err := c.kv.Get(ctx, c.key)
	if err != nil {
		return false, fmt.Errorf("load %s: %w", c.key, err)
	}
	if !ok {
		raw = nil
	}
	if bytes.Equal(raw, c.lastWritten) {
		return false, nil
	}
	var items []T
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &items); err != nil {
			return false, fmt.Errorf("decode %s: %w", c.key, err)
		}
	}
	c.items = items
	c.lastWritten = raw
	return true, nil
}

func (c *Collection[T]) onChange(ch storage.Change) {
	if ch.Key != c.key {
		return
	}
	c.mu.Lock()
	changed, err := c.reloadLocked(context.Background())
	var snapshot []T
	if changed {
		snapshot = c.snapshotLocked()
	}
	c.mu.Unlock()

	if err != nil {
		config.LogError(c.logger, "models", "Collection.onChange", c.key, ch, err)
		return
	}
	if !changed {
		return
	}
	c.logger.WithFields(logrus.Fields{
		"key":    c.key,
		"origin": ch.Origin,
		"count":  len(snapshot),
	}).Info("store reloaded")
	c.notify(snapshot)
}

func (c *Collection[T]) snapshotLocked() []T {
	return append([]T(nil), c.items...)
}

func indexOf[T Entity[T]](items []T, id string) int {
	for i, e := range items {
		if e.GetId() == id {
			return i
		}
	}
	return -1
}

// apply runs fn over a copy of the current list under the key lock, persists the result and
// only then swaps it in. On any error the in-memory list is left as it was.
func (c *Collection[T]) apply(ctx context.Context, action string, id string, fn func([]T) ([]T, error)) ([]T, error) {
	snapshot, err := c.commit(ctx, fn)
	if err != nil {
		return nil, err
	}
	c.notify(snapshot)
	c.publish(ctx, action, id)
	return snapshot, nil
}

func (c *Collection[T]) commit(ctx context.Context, fn func([]T) ([]T, error)) ([]T, error) {
	unlock, err := c.kv.Lock(ctx, c.key)
	if err != nil {
		perr := &utils.PersistenceError{Key: c.key, Err: err}
		config.LogError(c.logger, "models", "Collection.commit", c.key, nil, perr)
		return nil, perr
	}
	defer unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.refreshLocked(ctx); err != nil {
		perr := &utils.PersistenceError{Key: c.key, Err: err}
		config.LogError(c.logger, "models", "Collection.commit", c.key, nil, perr)
		return nil, perr
	}

	next, err := fn(c.snapshotLocked())
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(next)
	if err != nil {
		perr := &utils.PersistenceError{Key: c.key, Err: err}
		config.LogError(c.logger, "models", "Collection.commit", c.key, nil, perr)
		return nil, perr
	}
	if err := c.kv.Set(ctx, c.key, raw); err != nil {
		perr := &utils.PersistenceError{Key: c.key, Err: err}
		config.LogError(c.logger, "models", "Collection.commit", c.key, len(raw), perr)
		return nil, perr
	}
	c.items = next
	c.lastWritten = raw
	return c.snapshotLocked(), nil
}

func (c *Collection[T]) publish(ctx context.Context, action string, id string) {
	if c.opts.Publisher == nil {
		return
	}
	msg := config.PubSubMessage{
		ID:            uuid.NewString(),
		ReferenceType: c.opts.ReferenceType,
		ReferenceId:   id,
		Action:        action,
		OccurredAt:    time.Now().UTC(),
		CorrelationId: utils.CorrelationIdFromContextOrNew(ctx),
	}
	if err := c.opts.Publisher.Publish(ctx, msg); err != nil {
		config.LogError(c.logger, "models", "Collection.publish", c.key, msg, err)
	}
}

// Add admits a new entity. An empty id is replaced by a generated one.
func (c *Collection[T]) Add(ctx context.Context, e T) (T, error) {
	var zero T
	e = e.Normalized()
	if e.GetId() == "" {
		e = e.WithId(uuid.NewString())
	}
	if c.opts.Prepare != nil {
		e = c.opts.Prepare(e)
	}
	if err := e.Validate(); err != nil {
		return zero, err
	}
	id := e.GetId()
	_, err := c.apply(ctx, ActionCreate, id, func(items []T) ([]T, error) {
		if indexOf(items, id) >= 0 {
			return nil, fmt.Errorf("%s %s: %w", c.opts.ReferenceType, id, utils.ErrDuplicateId)
		}
		return append(items, e), nil
	})
	if err != nil {
		return zero, err
	}
	return e, nil
}

// Put stores e under its id, replacing any entity with the same id in place.
func (c *Collection[T]) Put(ctx context.Context, e T) (T, error) {
	var zero T
	e = e.Normalized()
	if e.GetId() == "" {
		return zero, utils.NewValidationError("id", "is required")
	}
	if err := e.Validate(); err != nil {
		return zero, err
	}
	id := e.GetId()
	action := ActionCreate
	if _, ok := c.Get(id); ok {
		action = ActionUpdate
	}
	_, err := c.apply(ctx, action, id, func(items []T) ([]T, error) {
		if idx := indexOf(items, id); idx >= 0 {
			items[idx] = e
			return items, nil
		}
		return append(items, e), nil
	})
	if err != nil {
		return zero, err
	}
	return e, nil
}

// Update merges patch (json field names) into the entity with id and revalidates it.
// A missing id is not an error: found is false and nothing is written.
func (c *Collection[T]) Update(ctx context.Context, id string, patch map[string]any) (T, bool, error) {
	var zero T
	if v, ok := patch["id"]; ok {
		if s, _ := v.(string); s != id {
			return zero, false, fmt.Errorf("id: %w", utils.ErrImmutableField)
		}
	}
	if c.opts.GuardPatch != nil {
		if err := c.opts.GuardPatch(patch); err != nil {
			return zero, false, err
		}
	}
	return c.UpdateWith(ctx, id, func(current T) (T, error) {
		return utils.MergePatch(current, patch)
	})
}

// UpdateWith replaces the entity with id by fn's result, after normalizing and validating it.
func (c *Collection[T]) UpdateWith(ctx context.Context, id string, fn func(current T) (T, error)) (T, bool, error) {
	var (
		zero    T
		updated T
	)
	_, err := c.apply(ctx, ActionUpdate, id, func(items []T) ([]T, error) {
		idx := indexOf(items, id)
		if idx < 0 {
			return nil, errNoChange
		}
		next, err := fn(items[idx])
		if err != nil {
			return nil, err
		}
		next = next.WithId(id).Normalized()
		if err := next.Validate(); err != nil {
			return nil, err
		}
		items[idx] = next
		updated = next
		return items, nil
	})
	if errors.Is(err, errNoChange) {
		return zero, false, nil
	}
	if err != nil {
		return zero, true, err
	}
	return updated, true, nil
}

// Delete removes the entity with id for good. Reports whether it existed.
func (c *Collection[T]) Delete(ctx context.Context, id string) (bool, error) {
	_, err := c.apply(ctx, ActionDelete, id, func(items []T) ([]T, error) {
		idx := indexOf(items, id)
		if idx < 0 {
			return nil, errNoChange
		}
		next := make([]T, 0, len(items)-1)
		next = append(next, items[:idx]...)
		return append(next, items[idx+1:]...), nil
	})
	if errors.Is(err, errNoChange) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if idx := indexOf(c.items, id); idx >= 0 {
		return c.items[idx], true
	}
	var zero T
	return zero, false
}

// MustGet is Get for callers that need the entity: absence is ErrorRecordNotFound.
func (c *Collection[T]) MustGet(id string) (T, error) {
	e, ok := c.Get(id)
	if !ok {
		return e, fmt.Errorf("%s %s: %w", c.opts.ReferenceType, id, utils.ErrorRecordNotFound)
	}
	return e, nil
}

// Find returns the first entity, in insertion order, for which match is true.
func (c *Collection[T]) Find(match func(T) bool) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.items {
		if match(e) {
			return e, true
		}
	}
	var zero T
	return zero, false
}

// List returns a snapshot in insertion order.
func (c *Collection[T]) List() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Subscribe registers fn to receive a snapshot after every change, local or from another writer.
func (c *Collection[T]) Subscribe(fn func([]T)) (cancel func()) {
	c.obsMu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.obsMu.Lock()
			delete(c.observers, id)
			c.obsMu.Unlock()
		})
	}
}

func (c *Collection[T]) notify(snapshot []T) {
	c.obsMu.Lock()
	ids := make([]int, 0, len(c.observers))
	for id := range c.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func([]T), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, c.observers[id])
	}
	c.obsMu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}

// Close stops following the backing store.
func (c *Collection[T]) Close() {
	if c.cancelKV != nil {
		c.cancelKV()
	}
}
