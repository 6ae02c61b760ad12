package graph

import "math"

// Penalty/factor knobs for the hazard weight function (spec §4.2, §6 env
// vars). Defaults match the spec's recommended values.
type WeightPolicy struct {
	FirePenalty      float64 // FIRE_PEN
	SmokePenalty     float64 // SMOKE_PEN
	PeoplePenalty    float64 // PEOPLE_PEN
	PeopleFactor     float64 // PEOPLE_FACTOR
	FireFactor       float64 // FIRE_FACTOR
	SmokeFactor      float64 // SMOKE_FACTOR
	ThresholdMultiplier float64 // THRESHOLD_MULT
}

// DefaultWeightPolicy returns the spec's recommended defaults.
func DefaultWeightPolicy() WeightPolicy {
	return WeightPolicy{
		FirePenalty:         1000,
		SmokePenalty:        500,
		PeoplePenalty:       2,
		PeopleFactor:        0.5,
		FireFactor:          2,
		SmokeFactor:         1.5,
		ThresholdMultiplier: 100,
	}
}

// EdgeSnapshot is the per-edge input to the hazard weight function: its
// static weight, alarm thresholds, and the values currently observed on it.
type EdgeSnapshot struct {
	StaticWeight    float64
	PeopleThreshold float64
	FireThreshold   float64
	SmokeThreshold  float64
	People          float64
	Fire            float64
	Smoke           float64
}

// WeightResult is the output of the hazard weight function.
type WeightResult struct {
	Weight         float64
	ExceedsThreshold bool
	ThresholdRatio float64
	DistanceMeters float64
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func safeRatio(value, threshold float64) float64 {
	if threshold <= 0 {
		if value > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return value / threshold
}

// Weight computes the hazard-weighted edge cost (spec §4.2). It is
// monotone nondecreasing in e.People, e.Fire, and e.Smoke by construction:
// every branch multiplies or adds a nonnegative term derived from those
// fields, never subtracts.
func Weight(e EdgeSnapshot, distanceMeters float64, policy WeightPolicy) WeightResult {
	peopleExcess := maxf(0, e.People-e.PeopleThreshold)
	fireExcess := maxf(0, e.Fire-e.FireThreshold)
	smokeExcess := maxf(0, e.Smoke-e.SmokeThreshold)
	exceeds := peopleExcess > 0 || fireExcess > 0 || smokeExcess > 0

	ratio := maxf(maxf(safeRatio(e.People, e.PeopleThreshold), safeRatio(e.Fire, e.FireThreshold)), safeRatio(e.Smoke, e.SmokeThreshold))

	w := distanceMeters * e.StaticWeight

	if exceeds {
		w *= 1 + ratio*policy.ThresholdMultiplier
		if fireExcess > 0 {
			w *= 1 + fireExcess*policy.FirePenalty
		}
		if smokeExcess > 0 {
			w *= 1 + smokeExcess*policy.SmokePenalty
		}
		w += peopleExcess * policy.PeoplePenalty
	} else {
		w *= (1 + safeRatio(e.People, e.PeopleThreshold)*policy.PeopleFactor) *
			(1 + safeRatio(e.Fire, e.FireThreshold)*policy.FireFactor) *
			(1 + safeRatio(e.Smoke, e.SmokeThreshold)*policy.SmokeFactor)
	}

	return WeightResult{
		Weight:           w,
		ExceedsThreshold: exceeds,
		ThresholdRatio:   ratio,
		DistanceMeters:   distanceMeters,
	}
}
