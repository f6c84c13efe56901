package interfaces

import "context"

// UniverseProvider lists market sectors and their constituent symbols for
// the market study.
type UniverseProvider interface {
	Sectors(ctx context.Context) ([]string, error)
	Constituents(ctx context.Context, sector string) ([]string, error)
}
