package cu

const (
	DefaultComputeUnitLimit     = 200000
	DefaultMaxInvokeStackHeight = 5
	DefaultMaxInstructionTrace  = 64
	DefaultHeapSize             = 32 * 1024
	DefaultStackFrameSize       = 4096
)

// ComputeBudget bounds a single instruction (or transaction) execution.
type ComputeBudget struct {
	ComputeUnitLimit     uint64 `yaml:"compute_unit_limit"`
	MaxInvokeStackHeight uint64 `yaml:"max_invoke_stack_height"`
	MaxInstructionTrace  uint64 `yaml:"max_instruction_trace"`
	HeapSize             uint32 `yaml:"heap_size"`
}

func DefaultComputeBudget() ComputeBudget {
	return ComputeBudget{
		ComputeUnitLimit:     DefaultComputeUnitLimit,
		MaxInvokeStackHeight: DefaultMaxInvokeStackHeight,
		MaxInstructionTrace:  DefaultMaxInstructionTrace,
		HeapSize:             DefaultHeapSize,
	}
}

// Meter returns a fresh compute meter funded with the budget's unit limit.
func (b ComputeBudget) Meter() ComputeMeter {
	return NewComputeMeter(b.ComputeUnitLimit)
}

// WithDefaults fills zero fields from DefaultComputeBudget.
func (b ComputeBudget) WithDefaults() ComputeBudget {
	def := DefaultComputeBudget()
	if b.ComputeUnitLimit == 0 {
		b.ComputeUnitLimit = def.ComputeUnitLimit
	}
	if b.MaxInvokeStackHeight == 0 {
		b.MaxInvokeStackHeight = def.MaxInvokeStackHeight
	}
	if b.MaxInstructionTrace == 0 {
		b.MaxInstructionTrace = def.MaxInstructionTrace
	}
	if b.HeapSize == 0 {
		b.HeapSize = def.HeapSize
	}
	return b
}
