// Package automation evaluates keyframe curves and pushes the result into
// live unit controls during playback.
package automation

import "sort"

// Keyframe anchors a control value at a time in seconds.
type Keyframe struct {
	Time  float64
	Value float64
}

// Keyframes is a curve sorted by ascending, unique Time. Values of this type
// are never modified in place once published.
type Keyframes []Keyframe

// Normalize returns a sorted copy of ks keeping the last value given for
// each time.
func Normalize(ks []Keyframe) Keyframes {
	out := make(Keyframes, len(ks))
	copy(out, ks)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	w := 0
	for i := range out {
		if w > 0 && out[w-1].Time == out[i].Time {
			out[w-1] = out[i]
			continue
		}
		out[w] = out[i]
		w++
	}
	return out[:w]
}

// search returns the index of the first keyframe with Time >= t.
func (k Keyframes) search(t float64) int {
	lo, hi := 0, len(k)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if k[mid].Time < t {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Evaluate returns the curve value at t, or static when the curve is empty.
// Outside the keyframe range the nearest boundary value is held; inside it
// the two bounding keyframes are linearly interpolated.
func (k Keyframes) Evaluate(t, static float64) float64 {
	n := len(k)
	if n == 0 {
		return static
	}
	if t <= k[0].Time {
		return k[0].Value
	}
	if t >= k[n-1].Time {
		return k[n-1].Value
	}
	i := k.search(t)
	k1 := k[i]
	if k1.Time == t {
		return k1.Value
	}
	k0 := k[i-1]
	if k1.Time == k0.Time {
		return k0.Value
	}
	return k0.Value + (k1.Value-k0.Value)*(t-k0.Time)/(k1.Time-k0.Time)
}
