package state

import (
	"errors"
	"fmt"

	"permitledger/storage"
)

// Changeset stages writes on top of a database. Reads observe staged values
// first. Nothing reaches the database until Commit, which applies every
// staged write in one atomic batch; Discard drops them.
//
// Changeset is not safe for concurrent use.
type Changeset struct {
	db     storage.Database
	writes map[string][]byte
	order  []string
	closed bool
}

// NewChangeset opens an empty changeset over db.
func NewChangeset(db storage.Database) *Changeset {
	return &Changeset{db: db, writes: make(map[string][]byte)}
}

// Get returns the staged value for key, falling back to the database. A nil
// slice with a nil error means the key is absent.
func (c *Changeset) Get(key []byte) ([]byte, error) {
	if value, ok := c.writes[string(key)]; ok {
		return append([]byte(nil), value...), nil
	}
	value, err := c.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return value, err
}

// Put stages value under key.
func (c *Changeset) Put(key, value []byte) error {
	if c.closed {
		return errors.New("state: changeset closed")
	}
	k := string(key)
	if _, ok := c.writes[k]; !ok {
		c.order = append(c.order, k)
	}
	c.writes[k] = append([]byte(nil), value...)
	return nil
}

// Len returns the number of staged keys.
func (c *Changeset) Len() int { return len(c.order) }

// Commit writes the staged set atomically and closes the changeset.
func (c *Changeset) Commit() error {
	if c.closed {
		return errors.New("state: changeset closed")
	}
	c.closed = true
	if len(c.order) == 0 {
		return nil
	}
	batch := c.db.NewBatch()
	for _, k := range c.order {
		batch.Put([]byte(k), c.writes[k])
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit %d writes: %w", len(c.order), err)
	}
	return nil
}

// Discard drops every staged write.
func (c *Changeset) Discard() {
	c.closed = true
	c.writes = make(map[string][]byte)
	c.order = nil
}
