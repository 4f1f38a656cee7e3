package engine

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// DrawKind enumerates the supported RNG request shapes (spec §4.1).
type DrawKind string

const (
	DrawDie           DrawKind = "die"           // uniform integer in [1, N]
	DrawSumOfDice     DrawKind = "sum_of_dice"    // NdS
	DrawModifier      DrawKind = "modifier"       // NdS + modifier
	DrawAdvantage     DrawKind = "advantage"      // roll twice, keep max
	DrawDisadvantage  DrawKind = "disadvantage"   // roll twice, keep min
)

// DrawRequest describes one RNG call.
type DrawRequest struct {
	Kind     DrawKind
	Count    int // number of dice (N)
	Sides    int // die size (S)
	Modifier int // flat modifier added to the total
}

// DrawResult is what a draw returns alongside the updated Rng.
type DrawResult struct {
	Total    int
	RawDraws []int
}

// ErrRNGNotSeeded is returned when a draw is requested against an
// unseeded Rng. Spec §4.1: "Unseeded mode is permitted only when no draw
// is requested during the call; any draw in unseeded mode fails with
// RNG_NOT_SEEDED."
var ErrRNGNotSeeded = fmt.Errorf("RNG_NOT_SEEDED")

// rngSource reconstructs a deterministic *rand.Rand positioned at
// (seed, counter): seeding once from the string seed and discarding
// `counter` outputs reproduces exactly the stream a prior call would
// have continued from, because math/rand.Rand is a pure function of its
// seed and the number of values drawn from it so far. This avoids
// needing to persist the generator itself in GameState — only the seed
// string and an integer counter travel with the value, matching spec
// §4.1's determinism contract ("same (seed, counter) -> same raw draw").
func rngSource(seed string, counter int) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	r := rand.New(rand.NewSource(int64(h.Sum64())))
	for i := 0; i < counter; i++ {
		r.Int63()
	}
	return r
}

// Draw performs one RNG request against rng, returning the result and
// the updated Rng (seed unchanged, counter advanced by the number of raw
// integers consumed, a RollRecord appended to LastRolls).
func Draw(rng Rng, req DrawRequest) (Rng, DrawResult, error) {
	if rng.Mode != RngSeeded {
		return rng, DrawResult{}, ErrRNGNotSeeded
	}
	if rng.Seed == nil || *rng.Seed == "" {
		return rng, DrawResult{}, ErrRNGNotSeeded
	}

	source := rngSource(*rng.Seed, rng.Counter)
	result, consumed, err := drawRaw(source, req)
	if err != nil {
		return rng, DrawResult{}, err
	}

	out := rng.clone()
	counterBefore := out.Counter
	out.Counter += consumed
	out.LastRolls = append(out.LastRolls, RollRecord{
		Kind:          string(req.Kind),
		Request:       fmt.Sprintf("%dd%d%+d", req.Count, req.Sides, req.Modifier),
		ResultTotal:   result.Total,
		RawDraws:      append([]int(nil), result.RawDraws...),
		CounterBefore: counterBefore,
		CounterAfter:  out.Counter,
	})
	return out, result, nil
}

func drawRaw(source *rand.Rand, req DrawRequest) (DrawResult, int, error) {
	switch req.Kind {
	case DrawDie:
		v := rollDie(source, req.Sides)
		return DrawResult{Total: v, RawDraws: []int{v}}, 1, nil

	case DrawSumOfDice, DrawModifier:
		count := req.Count
		if count < 1 {
			count = 1
		}
		draws := make([]int, count)
		total := req.Modifier
		for i := 0; i < count; i++ {
			draws[i] = rollDie(source, req.Sides)
			total += draws[i]
		}
		return DrawResult{Total: total, RawDraws: draws}, count, nil

	case DrawAdvantage, DrawDisadvantage:
		a := rollDie(source, req.Sides)
		b := rollDie(source, req.Sides)
		total := a
		if req.Kind == DrawAdvantage && b > a {
			total = b
		}
		if req.Kind == DrawDisadvantage && b < a {
			total = b
		}
		total += req.Modifier
		return DrawResult{Total: total, RawDraws: []int{a, b}}, 2, nil

	default:
		return DrawResult{}, 0, fmt.Errorf("unknown draw kind %q", req.Kind)
	}
}

// rollDie consumes exactly one Int63 draw from source, regardless of
// sides. Using rand.Rand.Intn here would risk an internal rejection loop
// consuming a variable number of draws for non-power-of-two side counts,
// which would desynchronize rngSource's counter-based replay (see its
// doc comment) from the actual stream position. A single modulo draw
// keeps "one raw draw per die" exact; the resulting small modulo bias is
// irrelevant for tabletop dice.
func rollDie(source *rand.Rand, sides int) int {
	if sides < 1 {
		sides = 1
	}
	return int(source.Int63()%int64(sides)) + 1
}

// D20 is a convenience request for a single d20 check with a modifier.
func D20(modifier int) DrawRequest {
	return DrawRequest{Kind: DrawModifier, Count: 1, Sides: 20, Modifier: modifier}
}

// D20Advantage/D20Disadvantage build the corresponding advantage request.
func D20Advantage(modifier int) DrawRequest {
	return DrawRequest{Kind: DrawAdvantage, Count: 1, Sides: 20, Modifier: modifier}
}

func D20Disadvantage(modifier int) DrawRequest {
	return DrawRequest{Kind: DrawDisadvantage, Count: 1, Sides: 20, Modifier: modifier}
}

// Dice builds a sum-of-NdS(+modifier) request.
func Dice(count, sides, modifier int) DrawRequest {
	return DrawRequest{Kind: DrawModifier, Count: count, Sides: sides, Modifier: modifier}
}
