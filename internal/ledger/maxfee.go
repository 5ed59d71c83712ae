package ledger

import (
	"sort"
	"strconv"

	"github.com/bits-and-blooms/bitset"
	"github.com/shopspring/decimal"
	"github.com/wx-shi/utxo-ledger/internal/model"
	"github.com/wx-shi/utxo-ledger/internal/utxo"
)

// SelectMaxFee returns the subset of candidates with the highest total fee
// such that no two selected transactions claim the same output. Only
// candidates that are individually valid against set are considered, and
// fees are computed against set. Between equal totals the branch that
// excludes the earlier candidate wins, so zero-fee transactions are never
// selected. accepted follows candidate order. set is not modified.
func (v *Validator) SelectMaxFee(candidates []*model.Transaction, set *utxo.Set) (accepted []*model.Transaction, newSet *utxo.Set) {
	valid := make([]maxFeeCandidate, 0, len(candidates))
	claims := make(map[model.OutPoint]int)
	for i, tx := range candidates {
		if !v.IsValid(tx, set) {
			continue
		}
		fee, _ := Fee(tx, set)
		valid = append(valid, maxFeeCandidate{idx: i, fee: fee})
		for _, in := range tx.Inputs {
			claims[in.PrevOut]++
		}
	}

	// Only outputs claimed by two or more candidates can cause a conflict.
	bits := make(map[model.OutPoint]uint)
	for op, n := range claims {
		if n > 1 {
			bits[op] = 0
		}
	}
	contestedOps := make([]model.OutPoint, 0, len(bits))
	for op := range bits {
		contestedOps = append(contestedOps, op)
	}
	sort.Slice(contestedOps, func(i, j int) bool {
		return contestedOps[i].String() < contestedOps[j].String()
	})
	for i, op := range contestedOps {
		bits[op] = uint(i)
	}

	selected := make([]int, 0, len(valid))
	search := &maxFeeSearch{memo: make(map[string]maxFeeBranch)}
	for _, c := range valid {
		mask := bitset.New(uint(len(contestedOps)))
		for _, in := range candidates[c.idx].Inputs {
			if bit, ok := bits[in.PrevOut]; ok {
				mask.Set(bit)
			}
		}
		if !mask.Any() {
			if c.fee.IsPositive() {
				selected = append(selected, c.idx)
			}
			continue
		}
		c.mask = mask
		search.cands = append(search.cands, c)
	}

	search.future = make([]*bitset.BitSet, len(search.cands)+1)
	search.future[len(search.cands)] = bitset.New(uint(len(contestedOps)))
	for k := len(search.cands) - 1; k >= 0; k-- {
		search.future[k] = search.future[k+1].Union(search.cands[k].mask)
	}

	best := search.best(0, bitset.New(uint(len(contestedOps))))
	for p := best.picks; p != nil; p = p.next {
		selected = append(selected, search.cands[p.pos].idx)
	}
	sort.Ints(selected)

	newSet = set.Clone()
	accepted = make([]*model.Transaction, 0, len(selected))
	for _, i := range selected {
		newSet.Apply(candidates[i])
		accepted = append(accepted, candidates[i])
	}
	return accepted, newSet
}

type maxFeeCandidate struct {
	idx  int
	fee  decimal.Decimal
	mask *bitset.BitSet
}

// maxFeePick is an immutable list of chosen positions; branches share tails.
type maxFeePick struct {
	pos  int
	next *maxFeePick
}

type maxFeeBranch struct {
	fee   decimal.Decimal
	picks *maxFeePick
}

// maxFeeSearch evaluates include/exclude branches over contested
// candidates. Results are memoized on the position plus the claimed
// outputs that later candidates could still collide with.
type maxFeeSearch struct {
	cands  []maxFeeCandidate
	future []*bitset.BitSet
	memo   map[string]maxFeeBranch
}

func (s *maxFeeSearch) best(pos int, used *bitset.BitSet) maxFeeBranch {
	if pos == len(s.cands) {
		return maxFeeBranch{fee: decimal.Zero}
	}
	key := strconv.Itoa(pos) + used.Intersection(s.future[pos]).String()
	if b, ok := s.memo[key]; ok {
		return b
	}

	result := s.best(pos+1, used)
	c := s.cands[pos]
	if used.IntersectionCardinality(c.mask) == 0 {
		with := s.best(pos+1, used.Union(c.mask))
		with = maxFeeBranch{
			fee:   with.fee.Add(c.fee),
			picks: &maxFeePick{pos: pos, next: with.picks},
		}
		if with.fee.GreaterThan(result.fee) {
			result = with
		}
	}
	s.memo[key] = result
	return result
}
