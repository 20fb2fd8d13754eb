package sheet

import "math"

// Sample resolves a continuous frame counter against an animation sequence
// and returns the sprite showing at that instant. It is a pure function;
// no state lives on the sequence.
func Sample(a *Animation, counter float64) *Sprite {
	c := math.Floor(counter)

	switch a.Mode {
	case Clamp:
		if c < 0 {
			return a.Sprites[0]
		}
		if c >= a.Frames {
			return a.Sprites[len(a.Sprites)-1]
		}
		return spriteAt(a, c)

	case Oscillate:
		// Double mod keeps negative counters periodic while preserving any
		// fractional remainder.
		c = math.Mod(math.Mod(c, a.Period)+a.Period, a.Period)
		first := a.Durations[0]
		last := a.Durations[len(a.Durations)-1]
		mid := (a.Period + first + last) / 2
		if c >= mid {
			// Reverse pass: walk backward from the penultimate sprite.
			rem := c - mid
			for i := len(a.Sprites) - 2; i >= 1; i-- {
				rem -= a.Durations[i]
				if rem < 0 {
					return a.Sprites[i]
				}
			}
			return a.Sprites[0]
		}
		return spriteAt(a, c)

	default: // Loop
		c = math.Mod(math.Mod(c, a.Period)+a.Period, a.Period)
		return spriteAt(a, c)
	}
}

// spriteAt walks the sequence accumulating consumed frame weight until the
// counter is exhausted. Sequences are short; a linear scan beats keeping a
// cumulative-sum index.
func spriteAt(a *Animation, c float64) *Sprite {
	for i, d := range a.Durations {
		c -= d
		if c < 0 {
			return a.Sprites[i]
		}
	}
	return a.Sprites[len(a.Sprites)-1]
}
