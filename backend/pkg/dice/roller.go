// Package dice parses tabletop dice notation ("2d6+3", "1d20-2") and
// resolves it against the engine's seeded RNG, so a roll made through
// this package advances the same (seed, counter) stream — and is
// replayable byte-for-byte — exactly like a roll made from inside
// internal/engine.
package dice

import (
	"errors"
	"regexp"
	"strconv"

	"github.com/rpgengine/arbiter/backend/internal/engine"
)

var notationRE = regexp.MustCompile(`^(\d+)d(\d+)([+-]\d+)?$`)

// RollResult is the resolved outcome of one notation roll.
type RollResult struct {
	Dice     []int
	Modifier int
	Total    int
}

// Roll parses notation and resolves it against rng, returning the
// result, the advanced Rng, and an error if the notation is malformed
// or the underlying draw fails (e.g. rng is unseeded).
func Roll(rng engine.Rng, notation string) (engine.Rng, *RollResult, error) {
	count, sides, modifier, err := parse(notation)
	if err != nil {
		return rng, nil, err
	}

	out, res, err := engine.Draw(rng, engine.Dice(count, sides, modifier))
	if err != nil {
		return rng, nil, err
	}

	return out, &RollResult{Dice: res.RawDraws, Modifier: modifier, Total: res.Total}, nil
}

// RollAdvantage rolls a single d20 with advantage against rng.
func RollAdvantage(rng engine.Rng, modifier int) (engine.Rng, *RollResult, error) {
	out, res, err := engine.Draw(rng, engine.D20Advantage(modifier))
	if err != nil {
		return rng, nil, err
	}
	return out, &RollResult{Dice: res.RawDraws, Modifier: modifier, Total: res.Total}, nil
}

// RollDisadvantage rolls a single d20 with disadvantage against rng.
func RollDisadvantage(rng engine.Rng, modifier int) (engine.Rng, *RollResult, error) {
	out, res, err := engine.Draw(rng, engine.D20Disadvantage(modifier))
	if err != nil {
		return rng, nil, err
	}
	return out, &RollResult{Dice: res.RawDraws, Modifier: modifier, Total: res.Total}, nil
}

func parse(notation string) (count, sides, modifier int, err error) {
	matches := notationRE.FindStringSubmatch(notation)
	if len(matches) == 0 {
		return 0, 0, 0, errors.New("invalid dice notation")
	}

	count, _ = strconv.Atoi(matches[1])
	sides, _ = strconv.Atoi(matches[2])
	if len(matches) > 3 && matches[3] != "" {
		modifier, _ = strconv.Atoi(matches[3])
	}

	if count < 1 || count > 100 {
		return 0, 0, 0, errors.New("dice count must be between 1 and 100")
	}
	if sides < 2 || (sides != 4 && sides != 6 && sides != 8 && sides != 10 && sides != 12 && sides != 20 && sides != 100) {
		return 0, 0, 0, errors.New("invalid dice type")
	}

	return count, sides, modifier, nil
}
