package domain

import "fmt"

// ContextParams struct - runtime parameters for loading an inference context
type ContextParams struct {
	Name        string
	ContextSize int
	BatchSize   int
	GPULayers   int
	UseMLock    bool
	Threads     int
}

// String func
func (p ContextParams) String() string {
	return fmt.Sprintf("%s(ctx=%d batch=%d gpu_layers=%d mlock=%t)", p.Name, p.ContextSize, p.BatchSize, p.GPULayers, p.UseMLock)
}

var (
	// OptimisticContextParams - large window with memory locking and full GPU offload
	OptimisticContextParams = ContextParams{
		Name:        "optimistic",
		ContextSize: 4096,
		BatchSize:   512,
		GPULayers:   99,
		UseMLock:    true,
	}

	// ConservativeContextParams - fits devices that reject the optimistic preset
	ConservativeContextParams = ContextParams{
		Name:        "conservative",
		ContextSize: 1024,
		BatchSize:   128,
		GPULayers:   0,
		UseMLock:    false,
	}
)

// DefaultInitLadder func - presets tried in order until one loads
func DefaultInitLadder() []ContextParams {
	return []ContextParams{OptimisticContextParams, ConservativeContextParams}
}

// CapContextSize returns p with its window limited to what the model supports
func (p ContextParams) CapContextSize(max int) ContextParams {
	if max > 0 && p.ContextSize > max {
		p.ContextSize = max
	}
	return p
}
