package domain

import "context"

// Locator supplies the user's position for default region selection.
// Implementations may be slow, deny access, or fail; callers bound the wait
// and treat any failure as "no position".
type Locator interface {
	Locate(ctx context.Context) (Coordinates, error)
}

// StaticLocator always reports a fixed position.
type StaticLocator struct {
	Position Coordinates
}

// Locate returns the configured position.
func (l StaticLocator) Locate(_ context.Context) (Coordinates, error) {
	return l.Position, nil
}
