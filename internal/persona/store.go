// Package persona implements the CRUD operations on the personas table.
package persona

import (
	"context"

	"gitlab.com/dirk.krummacker/personas-service/internal/database"
	"gitlab.com/dirk.krummacker/personas-service/pkg/model"
)

const (
	selectAll   = `SELECT id, name, secret, phone FROM personas`
	selectWhere = `SELECT id, name, secret, phone FROM personas WHERE id = ?`
	insertOne   = `INSERT INTO personas (id, name, secret, phone) VALUES (?, ?, ?, ?)`
	updateWhere = `UPDATE personas SET name = ?, secret = ?, phone = ? WHERE id = ?`
	deleteWhere = `DELETE FROM personas WHERE id = ?`
)

// Store executes one statement per operation and hands the pool's result back unchanged. It
// keeps no state of its own.
type Store struct {
	pool *database.Pool
}

// NewStore returns a store running its statements on pool.
func NewStore(pool *database.Pool) *Store {
	return &Store{pool: pool}
}

// List returns every persona.
func (s *Store) List(ctx context.Context) database.Result[[]model.Persona] {
	return database.Select[model.Persona](ctx, s.pool, selectAll)
}

// Get returns the personas whose id matches, which is at most one.
func (s *Store) Get(ctx context.Context, id string) database.Result[[]model.Persona] {
	return database.Select[model.Persona](ctx, s.pool, selectWhere, id)
}

// Insert creates a persona. Nil fields are stored as NULL.
func (s *Store) Insert(ctx context.Context, p model.Persona) database.Result[database.Acknowledgment] {
	return s.pool.Exec(ctx, insertOne, p.Id, p.Name, p.Secret, p.Phone)
}

// Update rewrites name, secret and phone of the persona with the given id. The Id field of p
// is ignored.
func (s *Store) Update(ctx context.Context, id string, p model.Persona) database.Result[database.Acknowledgment] {
	return s.pool.Exec(ctx, updateWhere, p.Name, p.Secret, p.Phone, id)
}

// Delete removes the persona with the given id.
func (s *Store) Delete(ctx context.Context, id string) database.Result[database.Acknowledgment] {
	return s.pool.Exec(ctx, deleteWhere, id)
}
