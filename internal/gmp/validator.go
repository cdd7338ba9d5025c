package gmp

import (
	"fmt"
	"time"

	"GreyPulse/internal/domain/models"
)

const epsilon = 1e-6

// ValidatorConfig tunes the consensus algorithm. Zero values fall back to
// the defaults below via NewValidator.
type ValidatorConfig struct {
	// MinSources is the minimum retained observation count required to
	// produce a non-zero consensus.
	MinSources int
	// OutlierZThreshold flags observations whose z-score exceeds it.
	OutlierZThreshold float64
	// MaxVarianceThreshold is the coefficient-of-variation ceiling above
	// which a result is marked unreliable.
	MaxVarianceThreshold float64
	// TimeWindow bounds how old an observation may be and still count as
	// current.
	TimeWindow time.Duration
	// OutlierFallbackRatio: when the z-score pass flags more than this share
	// of the sample, the z-score method itself is suspect and the IQR pass
	// result is used instead.
	OutlierFallbackRatio float64
}

// DefaultValidatorConfig returns the production defaults.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		MinSources:           2,
		OutlierZThreshold:    2.0,
		MaxVarianceThreshold: 0.3,
		TimeWindow:           6 * time.Hour,
		OutlierFallbackRatio: 0.5,
	}
}

// Validator reconciles noisy multi-source observations of one IPO's GMP into
// a single consensus value with a confidence score and reliability verdict.
// Validate is pure and safe to call concurrently for distinct IPOs.
type Validator struct {
	cfg     ValidatorConfig
	weights *WeightTable
}

func NewValidator(cfg ValidatorConfig, weights *WeightTable) *Validator {
	def := DefaultValidatorConfig()
	if cfg.MinSources <= 0 {
		cfg.MinSources = def.MinSources
	}
	if cfg.OutlierZThreshold <= 0 {
		cfg.OutlierZThreshold = def.OutlierZThreshold
	}
	if cfg.MaxVarianceThreshold <= 0 {
		cfg.MaxVarianceThreshold = def.MaxVarianceThreshold
	}
	if cfg.TimeWindow <= 0 {
		cfg.TimeWindow = def.TimeWindow
	}
	if cfg.OutlierFallbackRatio <= 0 || cfg.OutlierFallbackRatio > 1 {
		cfg.OutlierFallbackRatio = def.OutlierFallbackRatio
	}
	if weights == nil {
		weights = NewWeightTable(nil, 0.5)
	}
	return &Validator{cfg: cfg, weights: weights}
}

// Config returns the effective configuration.
func (v *Validator) Config() ValidatorConfig { return v.cfg }

// Weights returns the live weight table.
func (v *Validator) Weights() *WeightTable { return v.weights }

// Validate computes the validated GMP for one IPO from its recent
// observations. Malformed (non-finite) and stale observations are filtered
// first; every well-formed input yields a result, possibly marked
// unreliable. An empty ipoKey is a programming error.
func (v *Validator) Validate(ipoKey string, obs []models.Observation, now time.Time) (models.ValidatedGMP, error) {
	if ipoKey == "" {
		return models.ValidatedGMP{}, fmt.Errorf("validate: empty ipo key")
	}

	current := make([]models.Observation, 0, len(obs))
	cutoff := now.Add(-v.cfg.TimeWindow)
	for _, o := range obs {
		if !o.WellFormed() {
			continue
		}
		if o.ObservedAt.Before(cutoff) {
			continue
		}
		current = append(current, o)
	}

	if len(current) < v.cfg.MinSources {
		return models.ValidatedGMP{
			IPOKey:          ipoKey,
			Value:           0,
			Confidence:      0,
			Variance:        0,
			SourceCount:     len(current),
			Reliable:        false,
			ExcludedSources: []string{},
			ComputedAt:      now,
		}, nil
	}

	values := make([]float64, len(current))
	for i, o := range current {
		values[i] = o.Value
	}

	excluded := v.detectOutliers(current, values)

	retained := current
	if len(excluded) > 0 {
		if len(current)-len(excluded) < v.cfg.MinSources {
			// Removing the outlier set would leave too few observations to
			// validate; keep everything rather than trust a thinner sample.
			excluded = nil
		} else {
			retained = make([]models.Observation, 0, len(current)-len(excluded))
			drop := make(map[string]bool, len(excluded))
			for _, s := range excluded {
				drop[s] = true
			}
			for _, o := range current {
				if !drop[o.SourceID] {
					retained = append(retained, o)
				}
			}
		}
	}

	retainedValues := make([]float64, len(retained))
	retainedWeights := make([]float64, len(retained))
	for i, o := range retained {
		retainedValues[i] = o.Value
		retainedWeights[i] = v.weights.Get(o.SourceID)
	}

	value := weightedMean(retainedValues, retainedWeights)
	variance := popVariance(retainedValues) / (mean(retainedValues) + epsilon)
	confidence := v.confidenceScore(retained, retainedWeights, variance, now)

	reliable := len(retained) >= v.cfg.MinSources &&
		variance <= v.cfg.MaxVarianceThreshold &&
		confidence >= 0.6

	if excluded == nil {
		excluded = []string{}
	}
	return models.ValidatedGMP{
		IPOKey:          ipoKey,
		Value:           value,
		Confidence:      confidence,
		Variance:        variance,
		SourceCount:     len(retained),
		Reliable:        reliable,
		ExcludedSources: excluded,
		ComputedAt:      now,
	}, nil
}

// detectOutliers runs the z-score pass and the IQR pass and combines them:
// normally the union of both sets, but when the z-score pass flags more than
// OutlierFallbackRatio of the sample the z-score method is considered
// unreliable on this sample and the IQR set alone is used.
func (v *Validator) detectOutliers(obs []models.Observation, values []float64) []string {
	if len(values) < 3 {
		return nil
	}

	m := mean(values)
	std := popStdDev(values)

	zFlagged := make(map[string]bool, len(values))
	if std > 0 {
		for i, val := range values {
			z := (val - m) / std
			if z < 0 {
				z = -z
			}
			if z > v.cfg.OutlierZThreshold {
				zFlagged[obs[i].SourceID] = true
			}
		}
	}

	q1 := quantile(values, 0.25)
	q3 := quantile(values, 0.75)
	iqr := q3 - q1
	lower := q1 - 1.5*iqr
	upper := q3 + 1.5*iqr

	iqrFlagged := make(map[string]bool, len(values))
	for i, val := range values {
		if val < lower || val > upper {
			iqrFlagged[obs[i].SourceID] = true
		}
	}

	useIQROnly := float64(len(zFlagged)) > v.cfg.OutlierFallbackRatio*float64(len(values))

	var out []string
	for _, o := range obs {
		if iqrFlagged[o.SourceID] || (!useIQROnly && zFlagged[o.SourceID]) {
			out = append(out, o.SourceID)
			// A source reports each IPO once per batch after dedupe, but be
			// safe about repeats.
			iqrFlagged[o.SourceID] = false
			zFlagged[o.SourceID] = false
		}
	}
	return out
}

// confidenceScore blends source count, dispersion, source reliability, and
// freshness into [0, 1].
func (v *Validator) confidenceScore(retained []models.Observation, weights []float64, variance float64, now time.Time) float64 {
	sourceConf := float64(len(retained)) / 5.0
	if sourceConf > 1 {
		sourceConf = 1
	}

	varianceConf := 1 - variance/v.cfg.MaxVarianceThreshold
	if varianceConf < 0 {
		varianceConf = 0
	}

	weightConf := mean(weights)
	timeConf := v.timeConfidence(retained, now)

	score := 0.3*sourceConf + 0.3*varianceConf + 0.2*weightConf + 0.2*timeConf
	return clamp01(score)
}

// timeConfidence decays linearly from 1.0 for an observation made now to 0
// at the edge of the time window, averaged over the retained set. Any
// monotonic non-increasing curve satisfies the contract; linear keeps the
// score easy to reason about.
func (v *Validator) timeConfidence(retained []models.Observation, now time.Time) float64 {
	if len(retained) == 0 {
		return 0
	}
	window := v.cfg.TimeWindow.Seconds()
	sum := 0.0
	for _, o := range retained {
		age := now.Sub(o.ObservedAt).Seconds()
		if age < 0 {
			age = 0
		}
		sum += clamp01(1 - age/window)
	}
	return sum / float64(len(retained))
}

func weightedMean(values, weights []float64) float64 {
	var num, den float64
	for i, val := range values {
		num += val * weights[i]
		den += weights[i]
	}
	if den == 0 {
		return mean(values)
	}
	return num / den
}
