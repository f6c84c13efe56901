package interfaces

import (
	"context"

	"github.com/Lucas-vdH/AlgoTrading-Robot/internal/types"
)

type Engine interface {
	Run(ctx context.Context) (*types.CycleResult, error)
}
