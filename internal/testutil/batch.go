package testutil

// FixedBatchGenerator generates the same batch id every time.
//
// Move runs stamp every quarantined entry with a batch id; a fixed id keeps
// golden output byte-identical across runs.
//
// Thread-safety: FixedBatchGenerator is stateless and safe for concurrent use.
type FixedBatchGenerator struct {
	id string
}

// NewFixedBatchGenerator creates a new fixed batch id generator.
//
// If id is empty, Generate() returns "test-batch-default".
func NewFixedBatchGenerator(id string) *FixedBatchGenerator {
	if id == "" {
		id = "test-batch-default"
	}
	return &FixedBatchGenerator{id: id}
}

// Generate returns the fixed batch id.
func (g *FixedBatchGenerator) Generate() string {
	return g.id
}
