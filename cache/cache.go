// Package cache provides the command-scoped entity cache.
//
// The cache is an identity map over the entities loaded or created by a single
// command. It tracks which entities are new, modified or deleted, and Flush()
// converts those changes into an ordered persistence.Batch.
package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/dogmatiq/flowstate/persistence"
)

// ErrDeleted is returned when modifying an entity that has already been
// deleted within the same command. It indicates a stale write.
var ErrDeleted = errors.New("entity has been deleted")

// Cache is an identity map and unit-of-work for a single command.
//
// It is not safe for concurrent use.
type Cache struct {
	// Reader is used to load entities that are not already cached. It must be
	// set before any entity is loaded.
	Reader persistence.Reader

	entries map[persistence.Ref]*entry
	seq     int
}

// state is the lifecycle state of a cached entity.
type state int

const (
	clean state = iota
	inserted
	updated
	deleted

	// discarded is an entity that was inserted and then deleted within the
	// same command. It is never flushed.
	discarded
)

func (s state) isGone() bool {
	return s == deleted || s == discarded
}

// entry is a cached entity.
type entry struct {
	entity persistence.Entity
	state  state
	seq    int // order in which the entry was last staged
}

// Get returns the entity of type t with the given ID.
//
// If the entity is cached, the cached instance is returned. Otherwise it is
// loaded from the reader and cached. ok is false if the entity does not exist
// or has been deleted within this command.
func (c *Cache) Get(ctx context.Context, t persistence.Type, id string) (persistence.Entity, bool, error) {
	r := persistence.Ref{Type: t, ID: id}

	if en, ok := c.entries[r]; ok {
		if en.state.isGone() {
			return nil, false, nil
		}

		return en.entity, true, nil
	}

	if c.Reader == nil {
		panic("cache has no reader")
	}

	e, ok, err := c.Reader.Load(ctx, t, id)
	if err != nil || !ok {
		return nil, false, err
	}

	return c.track(e), true, nil
}

// Insert adds a new entity to the cache.
//
// It returns an error if an entity with the same type and ID is already cached,
// unless that entity was itself inserted and deleted within this command.
func (c *Cache) Insert(e persistence.Entity) error {
	r := persistence.RefOf(e)

	if en, ok := c.entries[r]; ok && en.state != discarded {
		return fmt.Errorf("can not insert %s, it is already cached", r)
	}

	c.put(r, &entry{entity: e, state: inserted})

	return nil
}

// Update marks a cached entity as modified.
//
// It returns ErrDeleted if the entity was deleted within this command. Marking
// an unmodified entity as updated forces a revision check and increment when
// the cache is flushed.
func (c *Cache) Update(e persistence.Entity) error {
	en, err := c.managed(e)
	if err != nil {
		return err
	}

	switch en.state {
	case deleted, discarded:
		return fmt.Errorf("can not update %s: %w", persistence.RefOf(e), ErrDeleted)
	case clean:
		en.state = updated
		en.seq = c.next()
	}

	return nil
}

// Delete marks a cached entity as deleted.
//
// Deleting an entity that is already deleted has no effect. Deleting an entity
// that was inserted within this command means it is never persisted.
func (c *Cache) Delete(e persistence.Entity) error {
	en, err := c.managed(e)
	if err != nil {
		return err
	}

	switch en.state {
	case deleted, discarded:
		return nil
	case inserted:
		en.state = discarded
	default:
		en.state = deleted
		en.seq = c.next()
	}

	return nil
}

// IsDeleted returns true if e has been deleted within this command.
func (c *Cache) IsDeleted(e persistence.Entity) bool {
	en, ok := c.entries[persistence.RefOf(e)]
	return ok && en.state.isGone()
}

// track adds an entity loaded from the reader to the cache, returning the
// cached instance if one already exists.
func (c *Cache) track(e persistence.Entity) persistence.Entity {
	r := persistence.RefOf(e)

	if en, ok := c.entries[r]; ok {
		return en.entity
	}

	c.put(r, &entry{entity: e, state: clean})

	return e
}

// managed returns the entry for e, which must be the cached instance.
func (c *Cache) managed(e persistence.Entity) (*entry, error) {
	r := persistence.RefOf(e)

	en, ok := c.entries[r]
	if !ok {
		return nil, fmt.Errorf("%s is not managed by this cache", r)
	}

	if en.entity != e {
		if en.state.isGone() {
			return nil, fmt.Errorf("can not modify %s: %w", r, ErrDeleted)
		}

		return nil, fmt.Errorf("%s is not the cached instance", r)
	}

	return en, nil
}

func (c *Cache) put(r persistence.Ref, en *entry) {
	if c.entries == nil {
		c.entries = map[persistence.Ref]*entry{}
	}

	en.seq = c.next()
	c.entries[r] = en
}

func (c *Cache) next() int {
	c.seq++
	return c.seq
}
