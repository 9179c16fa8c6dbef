package domain

import (
	"errors"
	"fmt"
)

// Params holds the tunable scoring constants. The yaml tags let operators
// override them from a file without touching code.
type Params struct {
	TargetTemp        float64 `yaml:"target_temp"`
	HotPenalty        float64 `yaml:"hot_penalty"`
	ColdPenalty       float64 `yaml:"cold_penalty"`
	RainPenalty       float64 `yaml:"rain_penalty"`
	HumidityPenalty   float64 `yaml:"humidity_penalty"`
	HumidityThreshold float64 `yaml:"humidity_threshold"`
	PlanningStartDay  int     `yaml:"planning_start_day"`
}

// DefaultParams returns the refined scoring constants.
func DefaultParams() Params {
	return Params{
		TargetTemp:        25.0,
		HotPenalty:        2.5,
		ColdPenalty:       1.8,
		RainPenalty:       5.0,
		HumidityPenalty:   0.3,
		HumidityThreshold: 60,
		PlanningStartDay:  2,
	}
}

// Validate rejects parameter sets that would break the monotonicity of the
// scores (negative multipliers) or the planning window.
func (p Params) Validate() error {
	var errs []error
	for name, v := range map[string]float64{
		"hot_penalty":      p.HotPenalty,
		"cold_penalty":     p.ColdPenalty,
		"rain_penalty":     p.RainPenalty,
		"humidity_penalty": p.HumidityPenalty,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must be >= 0, got %g", name, v))
		}
	}
	if p.HumidityThreshold < 0 || p.HumidityThreshold > 100 {
		errs = append(errs, fmt.Errorf("humidity_threshold must be within [0, 100], got %g", p.HumidityThreshold))
	}
	if p.PlanningStartDay < 0 {
		errs = append(errs, fmt.Errorf("planning_start_day must be >= 0, got %d", p.PlanningStartDay))
	}
	return errors.Join(errs...)
}

// tempPenalty is the one-sided distance from the target, weighted by the hot or
// cold multiplier.
func (p Params) tempPenalty(t float64) float64 {
	if t > p.TargetTemp {
		return (t - p.TargetTemp) * p.HotPenalty
	}
	return (p.TargetTemp - t) * p.ColdPenalty
}

// ClimateIndex maps a temperature to [0, 100], 50 at the target.
func (p Params) ClimateIndex(t float64) float64 {
	if t > p.TargetTemp {
		return clamp(50 + p.tempPenalty(t))
	}
	return clamp(50 - p.tempPenalty(t))
}

// WeatherScore is the absolute quality of a day in [0, 100]. Rain is in mm,
// humidity in percent.
func (p Params) WeatherScore(t, rain, humidity float64) float64 {
	score := 100.0
	score -= 2 * p.tempPenalty(t)
	score -= rain * p.RainPenalty
	score -= max(0, humidity-p.HumidityThreshold) * p.HumidityPenalty
	return clamp(score)
}

func clamp(v float64) float64 {
	return min(100, max(0, v))
}
