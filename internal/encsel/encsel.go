// Package encsel selects the encodings of the instructions of whole functions,
// and relaxes branches whose destination is out of range.
package encsel

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tetratelabs/encsel/internal/encapi"
	"github.com/tetratelabs/encsel/internal/ir"
	"github.com/tetratelabs/encsel/internal/isa"
	"github.com/tetratelabs/encsel/internal/logging"
)

// Selection is the outcome of encoding selection for one instruction.
type Selection struct {
	Inst  *ir.Instruction
	Block ir.BlockID
	// Encoding is the selected encoding, or isa.EncodingInvalid when the
	// instruction must be legalized first.
	Encoding isa.Encoding
	// Legalize is the action to apply when Encoding is not legal.
	Legalize isa.Legalize
	// Offset is the offset of the instruction in the function code.
	Offset isa.CodeOffset
}

// Result holds the selections of a function in layout order.
type Result struct {
	Func       *ir.Function
	Selections []Selection
	// BlockOffsets holds the code offset of each block, indexed by ir.BlockID.
	BlockOffsets []isa.CodeOffset
	// Size is the code size of the function. Instructions to legalize count as zero bytes.
	Size isa.CodeOffset
	// Relaxed is the number of branches whose encoding was changed by RelaxBranches.
	Relaxed int
}

// Illegal returns the selections of instructions which must be legalized.
func (r *Result) Illegal() (ret []*Selection) {
	for i := range r.Selections {
		if s := &r.Selections[i]; !s.Encoding.IsLegal() {
			ret = append(ret, s)
		}
	}
	return
}

// Format returns a listing of the selections with their offsets.
func (r *Result) Format(ei *isa.EncInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "function %%%s: %d bytes\n", r.Func.Name, r.Size)
	blk := ir.BlockID(1<<32 - 1)
	for i := range r.Selections {
		s := &r.Selections[i]
		if s.Block != blk {
			blk = s.Block
			fmt.Fprintf(&b, "%s:\n", blk)
		}
		if s.Encoding.IsLegal() {
			fmt.Fprintf(&b, "  %06x  %-24s %s\n", s.Offset, ei.Display(s.Encoding), s.Inst)
		} else {
			fmt.Fprintf(&b, "  %06x  %-24s %s\n", s.Offset, "legalize:"+s.Legalize.String(), s.Inst)
		}
	}
	return b.String()
}

// Select selects the encoding of every instruction of fn, then relaxes
// branches if enabled in cfg. A nil cfg uses NewConfig.
func Select(cfg *Config, target isa.TargetISA, fn *ir.Function) (*Result, error) {
	if cfg == nil {
		cfg = defaultConfig
	}
	r := &Result{Func: fn, Selections: make([]Selection, 0, fn.NumInstructions())}
	for _, blk := range fn.Blocks() {
		for _, inst := range blk.Instructions() {
			ctrlTy := fn.CtrlTypevar(inst)
			enc, legalize, ok := isa.Encode(target, fn, inst, ctrlTy)
			if ok {
				cfg.logger.Logf(logging.LogScopeLookup, "%s: %s", inst, target.EncInfo().Display(enc))
			} else {
				cfg.logger.Logf(logging.LogScopeLegalize, "%s: %s", inst, legalize)
			}
			r.Selections = append(r.Selections, Selection{Inst: inst, Block: blk.ID(), Encoding: enc, Legalize: legalize})
		}
	}
	r.layout(target.EncInfo())

	if cfg.branchRelaxation {
		if err := RelaxBranches(cfg, target, r); err != nil {
			return nil, fmt.Errorf("%s: %w", fn.Name, err)
		}
	}
	return r, nil
}

// SelectAll runs Select on each function with up to the configured number of
// workers. The results are in the order of fns.
//
// This stops at the first error or when ctx is done.
func SelectAll(ctx context.Context, cfg *Config, target isa.TargetISA, fns []*ir.Function) ([]*Result, error) {
	if cfg == nil {
		cfg = defaultConfig
	}
	results := make([]*Result, len(fns))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers)
	for i, fn := range fns {
		if gctx.Err() != nil {
			break
		}
		i, fn := i, fn
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := Select(cfg, target, fn)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// The group context is done once Wait returns, so check the caller's.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// layout computes the offsets of instructions and blocks from the size of
// the selected encodings.
func (r *Result) layout(ei *isa.EncInfo) {
	r.BlockOffsets = make([]isa.CodeOffset, len(r.Func.Blocks()))
	var offset isa.CodeOffset
	blk := -1
	for i := range r.Selections {
		s := &r.Selections[i]
		// Empty blocks start where the next block starts.
		for ; blk < int(s.Block); blk++ {
			r.BlockOffsets[blk+1] = offset
		}
		s.Offset = offset
		offset += ei.ByteSize(s.Encoding)
	}
	for blk++; blk < len(r.BlockOffsets); blk++ {
		r.BlockOffsets[blk] = offset
	}
	r.Size = offset
}

// RelaxBranches replaces the encoding of branches whose destination is out
// of the branch range of their recipe with the first legal encoding, in
// priority order, whose range contains it. Since a longer encoding moves the
// code which follows, this iterates until no branch changes.
func RelaxBranches(cfg *Config, target isa.TargetISA, r *Result) error {
	if cfg == nil {
		cfg = defaultConfig
	}
	ei := target.EncInfo()
	fn := r.Func
	// Each round relaxes at least one branch, which can't happen more often than there are branches and encodings.
	maxRounds := len(r.Selections) + 1
	for round := 0; ; round++ {
		if round == maxRounds {
			return fmt.Errorf("branch relaxation did not converge after %d rounds", round)
		}

		changed := false
		for i := range r.Selections {
			s := &r.Selections[i]
			if !s.Inst.Opcode().IsBranch() {
				continue
			}
			br, ok := ei.BranchRange(s.Encoding)
			if !ok {
				continue
			}
			dest := r.BlockOffsets[s.Inst.Target()]
			if br.Contains(s.Offset, dest) {
				continue
			}

			// A new lookup, since the iterator of the first selection is exhausted.
			encs := target.LegalEncodings(fn, s.Inst, fn.CtrlTypevar(s.Inst))
			relaxed := isa.EncodingInvalid
			for {
				enc, ok := encs.Next()
				if !ok {
					break
				}
				if encRange, ok := ei.BranchRange(enc); !ok || encRange.Contains(s.Offset, dest) {
					relaxed = enc
					break
				}
			}
			if !relaxed.IsLegal() {
				return fmt.Errorf("no encoding of %s at %d reaches %s at %d", s.Inst, s.Offset, s.Inst.Target(), dest)
			}

			if encapi.RelaxationLoggingEnabled {
				fmt.Printf("[relax round %d] %s: %s -> %s\n", round, s.Inst, ei.Display(s.Encoding), ei.Display(relaxed))
			}
			cfg.logger.Logf(logging.LogScopeRelax, "%s at %d: %s -> %s", s.Inst, s.Offset, ei.Display(s.Encoding), ei.Display(relaxed))
			s.Encoding = relaxed
			r.Relaxed++
			changed = true
		}
		if !changed {
			return nil
		}
		r.layout(ei)
	}
}
