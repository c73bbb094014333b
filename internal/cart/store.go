package cart

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotHydrated = errors.New("cart store used before hydration")

// Persister loads and saves the lines of one cart by key. Load returns no
// lines and no error for an unknown key.
type Persister interface {
	Load(ctx context.Context, key string) ([]Line, error)
	Save(ctx context.Context, key string, lines []Line) error
	Delete(ctx context.Context, key string) error
}

// Store owns a single cart. It must be hydrated once before use; every
// mutation is persisted before it becomes visible, so a failed save leaves
// the cart as it was. A Store is not safe for concurrent use.
type Store struct {
	persister Persister
	key       string
	cart      *Cart
	hydrated  bool
}

// NewStore creates a store for the cart saved under key
func NewStore(persister Persister, key string) *Store {
	return &Store{
		persister: persister,
		key:       key,
		cart:      New(),
	}
}

// Key returns the persistence key of the cart
func (s *Store) Key() string {
	return s.key
}

// Hydrated reports whether Hydrate has completed
func (s *Store) Hydrated() bool {
	return s.hydrated
}

// Hydrate loads the persisted cart. Calling it again is a no-op.
func (s *Store) Hydrate(ctx context.Context) error {
	if s.hydrated {
		return nil
	}

	lines, err := s.persister.Load(ctx, s.key)
	if err != nil {
		return fmt.Errorf("failed to load cart: %w", err)
	}

	s.cart = FromLines(lines)
	s.hydrated = true
	return nil
}

// Snapshot returns a copy of the current cart
func (s *Store) Snapshot() (*Cart, error) {
	if !s.hydrated {
		return nil, ErrNotHydrated
	}
	return s.cart.Clone(), nil
}

// Add merges line into the cart
func (s *Store) Add(ctx context.Context, line Line) error {
	return s.mutate(ctx, func(c *Cart) error {
		return c.Add(line)
	})
}

// UpdateQuantity sets the quantity of an existing line, clamped to 1
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	return s.mutate(ctx, func(c *Cart) error {
		return c.UpdateQuantity(productID, quantity)
	})
}

// Remove deletes a line. Removing an unknown product is not an error and
// does not touch the persister.
func (s *Store) Remove(ctx context.Context, productID string) error {
	if !s.hydrated {
		return ErrNotHydrated
	}
	if _, ok := s.cart.Line(productID); !ok {
		return nil
	}
	return s.mutate(ctx, func(c *Cart) error {
		c.Remove(productID)
		return nil
	})
}

// Clear empties the cart and deletes its persisted copy
func (s *Store) Clear(ctx context.Context) error {
	if !s.hydrated {
		return ErrNotHydrated
	}

	if err := s.persister.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	s.cart = New()
	return nil
}

func (s *Store) mutate(ctx context.Context, fn func(c *Cart) error) error {
	if !s.hydrated {
		return ErrNotHydrated
	}

	next := s.cart.Clone()
	if err := fn(next); err != nil {
		return err
	}

	if err := s.persister.Save(ctx, s.key, next.Lines()); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}

	s.cart = next
	return nil
}
