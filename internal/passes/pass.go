// Package passes implements the fixed-point optimization pipeline that
// rewrites a lifted Program into its simplified form: constant folding,
// dead code elimination, and the oracle-driven call/attribute
// simplifications that recover source-level names from the pickle
// bytecode's raw CALL/GET_ATTR/GET_ITEM traffic.
package passes

import (
	"github.com/lunbun/peekle/internal/il"
	"github.com/lunbun/peekle/internal/oracle"
)

// Pass is one rewrite rule the PassManager drives to fixed point. Run
// reports whether it performed at least one replacement or removal; a pass
// that returns false must leave the Program byte-identical to before
// (SPEC_FULL.md §4.4's monotonicity requirement).
type Pass interface {
	Name() string
	Run(program *il.Program) bool
}

// PassManager owns an ordered list of passes and drives them to fixed
// point, mirroring the teacher's Optimizer shape generalized to the
// reference TransformManager's loop-until-unchanged contract.
type PassManager struct {
	passes []Pass
}

// NewPassManager returns a manager running passes in the given order.
func NewPassManager(passes ...Pass) *PassManager {
	return &PassManager{passes: passes}
}

// Default returns the manager wired with the default ten-pass pipeline in
// the order SPEC_FULL.md §4.4 specifies.
func Default(o oracle.Oracle) *PassManager {
	return NewPassManager(
		&ConstantValuePass{},
		&ConstantGlobalPass{},
		&ConstantGetItemPass{},
		&InlineMutableConstantPass{},
		&DeadCodePass{oracle: o},
		&GlobalCallPass{oracle: o},
		&InstanceDunderPass{},
		&ImportToGlobalPass{oracle: o},
		&GlobalReductionPass{},
		&LocalsPass{oracle: o},
	)
}

// Run drives every pass to fixed point: repeat sweeping the full pass list
// until a full sweep reports no progress, or maxPasses sweeps have run
// (maxPasses <= 0 means unbounded). Returns the number of sweeps performed.
func (m *PassManager) Run(program *il.Program, maxPasses int) int {
	n := 0
	for {
		modified := false
		for _, p := range m.passes {
			if p.Run(program) {
				modified = true
			}
		}
		n++
		if !modified {
			return n
		}
		if maxPasses > 0 && n >= maxPasses {
			return n
		}
	}
}
