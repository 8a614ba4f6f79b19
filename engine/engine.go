// Package engine implements C7: the Orchestrator that drives the
// Smoother, Threshold, Background, Peak, Coincidence, and Quantitation
// components for each (sample, isotope) unit, owns the result caches,
// and exposes them to collaborators.
//
// There is no hidden global state: every cache lives on an *Engine
// value, and sigma is a field of it rather than a package-level
// variable, so multiple engines can run independently in the same
// process.
package engine

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/icpms/particle-engine/config"
	"github.com/icpms/particle-engine/internal/background"
	"github.com/icpms/particle-engine/internal/coincidence"
	"github.com/icpms/particle-engine/internal/peaks"
	"github.com/icpms/particle-engine/internal/quantitation"
	"github.com/icpms/particle-engine/internal/smoothing"
	"github.com/icpms/particle-engine/internal/threshold"
	"github.com/icpms/particle-engine/model"
)

// State tracks whether a (sample, isotope) unit's cached output is
// still valid.
type State int

const (
	Computed State = iota
	Changed
)

// ProgressSink receives well-defined progress boundaries from workers.
// Implementations must not block; the Orchestrator does not know or
// care whether anything consumes the signals.
type ProgressSink interface {
	UnitStarted(sample string, isotope model.IsotopeKey)
	UnitFinished(sample string, isotope model.IsotopeKey)
}

type noopProgressSink struct{}

func (noopProgressSink) UnitStarted(string, model.IsotopeKey) {}
func (noopProgressSink) UnitFinished(string, model.IsotopeKey) {}

// Warning is one entry in the Orchestrator's warnings stream.
type Warning struct {
	Kind    string
	Sample  string
	Isotope model.IsotopeKey
	Detail  string
}

const (
	WarnThresholdNaN             = "threshold_nan"
	WarnBackgroundNonConvergence = "background_nonconvergence"
	WarnUncalibrated             = "uncalibrated"
	WarnMissingDensity           = "missing_density"
	WarnMissingMolecularWeight   = "missing_molecular_weight"
)

type unitResult struct {
	key       config.SampleIsotopeKey
	profile   background.Profile
	particles []model.Particle
	warnings  []Warning
}

// Engine owns all per-(sample, isotope) caches plus the process-wide
// calibration state and sigma. Zero value is not usable; construct
// with New.
type Engine struct {
	mu sync.RWMutex

	sigma                      float64
	overlapThresholdPercentage float64
	calibration                config.CalibrationState

	traces map[config.SampleIsotopeKey]model.Trace
	params map[config.SampleIsotopeKey]config.DetectionParams
	states map[config.SampleIsotopeKey]State

	// traceFingerprints/paramsFingerprints cache the last-installed
	// Trace.Fingerprint / DetectionParams.Fingerprint per unit, so
	// SetTrace/SetDetectionParams can skip the Changed transition when
	// the incoming value is bit-for-bit identical to what's cached.
	traceFingerprints  map[config.SampleIsotopeKey]uint64
	paramsFingerprints map[config.SampleIsotopeKey]uint64

	profiles  map[config.SampleIsotopeKey]background.Profile
	particles map[config.SampleIsotopeKey][]model.Particle

	multiParticles map[string][]model.MultiElementParticle
	quantified     map[string][]model.Quantified

	progress ProgressSink
	warnings []Warning
}

// New constructs an Engine with the given process-wide sigma default.
func New(sigma float64) *Engine {
	return &Engine{
		sigma:                      sigma,
		overlapThresholdPercentage: 50,
		traces:                     make(map[config.SampleIsotopeKey]model.Trace),
		params:                     make(map[config.SampleIsotopeKey]config.DetectionParams),
		states:                     make(map[config.SampleIsotopeKey]State),
		traceFingerprints:          make(map[config.SampleIsotopeKey]uint64),
		paramsFingerprints:         make(map[config.SampleIsotopeKey]uint64),
		profiles:                   make(map[config.SampleIsotopeKey]background.Profile),
		particles:                  make(map[config.SampleIsotopeKey][]model.Particle),
		multiParticles:             make(map[string][]model.MultiElementParticle),
		quantified:                 make(map[string][]model.Quantified),
		progress:                   noopProgressSink{},
	}
}

// SetProgressSink installs the collaborator that receives per-unit
// start/finish signals. Pass nil to go back to a no-op sink.
func (e *Engine) SetProgressSink(sink ProgressSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sink == nil {
		sink = noopProgressSink{}
	}
	e.progress = sink
}

// SetTrace installs (or replaces) the trace for a (sample, isotope)
// unit. Marks it Changed unless the incoming trace's Fingerprint
// matches the one already cached for this unit — an identical trace
// never forces recomputation.
func (e *Engine) SetTrace(sample string, isotope model.IsotopeKey, trace model.Trace) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := config.SampleIsotopeKey{Sample: sample, Isotope: isotope}
	fp := trace.Fingerprint()
	prevFP, hadPrior := e.traceFingerprints[key]
	e.traces[key] = trace
	e.traceFingerprints[key] = fp
	if hadPrior && prevFP == fp {
		return
	}
	e.states[key] = Changed
}

// SetDetectionParams installs detection parameters for a unit. Marks it
// Changed unless p's Fingerprint (under the current sigma) matches the
// one already cached for this unit — guarding the Orchestrator against
// redundant recomputation when a caller re-installs identical params.
func (e *Engine) SetDetectionParams(sample string, isotope model.IsotopeKey, p config.DetectionParams) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := config.SampleIsotopeKey{Sample: sample, Isotope: isotope}
	fp := p.Fingerprint(e.sigma)
	prevFP, hadPrior := e.paramsFingerprints[key]
	e.params[key] = p
	e.paramsFingerprints[key] = fp
	if hadPrior && prevFP == fp {
		return
	}
	e.states[key] = Changed
}

// SetSigma changes the process-wide sigma and invalidates every unit,
// since CompoundPoissonLognormal thresholds depend on it. Also
// refreshes each unit's cached params fingerprint under the new sigma,
// so a subsequent SetDetectionParams call with unchanged params is
// compared against a fingerprint that reflects the sigma that produced
// the current cache.
func (e *Engine) SetSigma(sigma float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sigma = sigma
	for key, p := range e.params {
		e.paramsFingerprints[key] = p.Fingerprint(sigma)
		e.states[key] = Changed
	}
}

// SetOverlapThresholdPercentage sets C5's coincidence-overlap cutoff
// (0-100). Does not invalidate any cache; it only affects the next
// coincidence merge, which Detect runs only when the sample has at
// least one Changed unit.
func (e *Engine) SetOverlapThresholdPercentage(pct float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.overlapThresholdPercentage = pct
}

// SetCalibrationState replaces the process-wide calibration. This
// invalidates only derived quantitation output, never particle lists.
func (e *Engine) SetCalibrationState(state config.CalibrationState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calibration = state
	e.quantified = make(map[string][]model.Quantified)
}

// Detect runs C1->C3->C2->C4 for every Changed (sample, isotope) unit
// belonging to sampleID, across a worker pool, then runs C5 for the
// sample once every isotope has finished. Units for other samples are
// untouched. Cancellation via ctx is cooperative: observed between
// units, never mid-unit.
func (e *Engine) Detect(ctx context.Context, sampleID string) error {
	units := e.changedUnitsFor(sampleID)
	if len(units) == 0 {
		return nil
	}

	results, err := e.runUnitsParallel(ctx, units)
	if err != nil {
		return err
	}

	e.mu.Lock()
	for _, r := range results {
		e.profiles[r.key] = r.profile
		e.particles[r.key] = r.particles
		e.states[r.key] = Computed
		e.warnings = append(e.warnings, r.warnings...)
	}
	e.mu.Unlock()

	e.mergeCoincidence(sampleID)
	return nil
}

// changedUnitsFor returns the Changed keys for a sample, sorted by
// isotope mass then element symbol for deterministic dispatch order.
func (e *Engine) changedUnitsFor(sampleID string) []config.SampleIsotopeKey {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var units []config.SampleIsotopeKey
	for key, state := range e.states {
		if key.Sample == sampleID && state == Changed {
			units = append(units, key)
		}
	}
	sort.Slice(units, func(i, j int) bool {
		if units[i].Isotope.MassAmu != units[j].Isotope.MassAmu {
			return units[i].Isotope.MassAmu < units[j].Isotope.MassAmu
		}
		return units[i].Isotope.Element < units[j].Isotope.Element
	})
	return units
}

// runUnitsParallel snapshots every unit's read-only inputs, processes
// them across a worker pool (chunked, one goroutine per worker), and
// collects results for a single-threaded apply phase — mirroring the
// teacher's snapshot/compute/apply parallel dispatch shape, adapted
// from entity batches to (sample, isotope) units.
func (e *Engine) runUnitsParallel(ctx context.Context, units []config.SampleIsotopeKey) ([]unitResult, error) {
	n := len(units)
	results := make([]unitResult, n)

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > n {
		numWorkers = n
	}
	chunkSize := (n + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(i0, i1 int) {
			defer wg.Done()
			for i := i0; i < i1; i++ {
				select {
				case <-ctx.Done():
					return
				default:
				}
				key := units[i]
				e.progress.UnitStarted(key.Sample, key.Isotope)
				results[i] = e.computeUnit(key)
				e.progress.UnitFinished(key.Sample, key.Isotope)
			}
		}(start, end)
	}
	wg.Wait()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return results, nil
}

// computeUnit runs C1 (smoothing) -> C3 (background/threshold,
// possibly iterating via C2) -> C4 (peak finding) for one unit. It
// reads e.traces/e.params/e.sigma under a read lock and writes
// nothing; the caller applies results.
func (e *Engine) computeUnit(key config.SampleIsotopeKey) unitResult {
	e.mu.RLock()
	trace := e.traces[key]
	p := e.params[key]
	sigma := e.sigma
	e.mu.RUnlock()

	result := unitResult{key: key}
	if !p.Include {
		return result
	}

	raw := make([]float64, trace.Len())
	for i, c := range trace.Counts {
		raw[i] = float64(c)
	}
	smoothed := raw
	if p.ApplySmoothing {
		smoothed = smoothing.Smooth(raw, p.SmoothWindow, p.SmoothIterations)
	}

	thresholdModel, err := threshold.New(p.Method)
	if err != nil {
		logrus.WithError(err).WithField("isotope", key.Isotope.String()).Error("engine: unknown threshold method")
		result.warnings = append(result.warnings, Warning{Kind: WarnThresholdNaN, Sample: key.Sample, Isotope: key.Isotope, Detail: err.Error()})
		return result
	}

	bgParams := background.Params{
		Model:         thresholdModel,
		Alpha:         p.Alpha,
		Sigma:         sigma,
		Manual:        p.ManualThreshold,
		Iterative:     p.Iterative,
		MaxIterations: p.EffectiveMaxIterations(),
	}

	windowSize := 0
	if p.UseWindowSize {
		windowSize = p.WindowSize
	}
	profile := background.BuildProfile(smoothed, windowSize, bgParams)
	result.profile = profile

	for _, w := range profile.Windows {
		if w.Estimate.Outcome == threshold.NumericFailure {
			result.warnings = append(result.warnings, Warning{Kind: WarnThresholdNaN, Sample: key.Sample, Isotope: key.Isotope})
		}
		if w.Estimate.NonConvergence {
			result.warnings = append(result.warnings, Warning{Kind: WarnBackgroundNonConvergence, Sample: key.Sample, Isotope: key.Isotope})
		}
	}

	// A NaN threshold in one window never admits a candidate run there
	// (any sample > NaN is false), so windows with a usable threshold
	// still yield particles even when a sibling window failed.
	result.particles = peaks.Find(key.Isotope, raw, smoothed, profile, peaks.Params{MinContinuous: p.MinContinuous}, trace.DwellS)
	return result
}

// mergeCoincidence runs C5 across every isotope's current particle
// list for a sample and stores the resulting clusters.
func (e *Engine) mergeCoincidence(sampleID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	byIsotope := make(map[model.IsotopeKey][]model.Particle)
	for key, particles := range e.particles {
		if key.Sample == sampleID {
			byIsotope[key.Isotope] = particles
		}
	}
	clusters := coincidence.Merge(byIsotope, coincidence.Params{OverlapThresholdPercentage: e.overlapThresholdPercentage})
	e.multiParticles[sampleID] = clusters
}

// ParticlesFor returns the cached particle list for a unit.
func (e *Engine) ParticlesFor(sample string, isotope model.IsotopeKey) ([]model.Particle, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	key := config.SampleIsotopeKey{Sample: sample, Isotope: isotope}
	p, ok := e.particles[key]
	return p, ok
}

// ThresholdProfileFor returns the cached (λ, T) profile for a unit.
func (e *Engine) ThresholdProfileFor(sample string, isotope model.IsotopeKey) (background.Profile, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	key := config.SampleIsotopeKey{Sample: sample, Isotope: isotope}
	p, ok := e.profiles[key]
	return p, ok
}

// MultiElementParticles returns the coincidence clusters for a sample.
func (e *Engine) MultiElementParticles(sample string) []model.MultiElementParticle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.multiParticles[sample]
}

// Warnings drains and returns all warnings accumulated so far.
func (e *Engine) Warnings() []Warning {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.warnings
	e.warnings = nil
	return out
}

// RecomputeQuantitation runs C6 over every multi-element cluster in a
// sample, plus every detected particle that coincidence merging left
// out of a cluster (quantified individually, with NaN percentages
// since there is no cluster total to share against), using the
// current CalibrationState.
func (e *Engine) RecomputeQuantitation(sample string) {
	e.mu.Lock()
	clusters := append([]model.MultiElementParticle(nil), e.multiParticles[sample]...)
	state := e.calibration
	var standalone []model.Particle
	for key, particles := range e.particles {
		if key.Sample != sample {
			continue
		}
		standalone = append(standalone, particles...)
	}
	e.mu.Unlock()

	quants := make([]model.Quantified, 0, len(clusters)+len(standalone))
	clusteredRefs := make(map[uuid.UUID]bool)
	for _, cluster := range clusters {
		var clusterQuants []model.Quantified
		for isotope, counts := range cluster.Elements {
			massFraction := e.massFractionFor(state, isotope)
			q := quantitation.Quantify(isotope, counts, state, massFraction)
			q.ParticleRef = cluster.ElementRefs[isotope]
			clusterQuants = append(clusterQuants, q)
			clusteredRefs[q.ParticleRef] = true
		}
		clusterQuants = quantitation.Percentages(clusterQuants)
		quants = append(quants, clusterQuants...)
	}

	for _, p := range standalone {
		if clusteredRefs[p.Ref] {
			continue
		}
		massFraction := e.massFractionFor(state, p.Isotope)
		q := quantitation.Quantify(p.Isotope, p.TotalCounts, state, massFraction)
		q.ParticleRef = p.Ref
		quants = append(quants, q)
	}

	e.mu.Lock()
	e.quantified[sample] = quants
	e.mu.Unlock()
}

// massFractionFor returns an isotope's configured mass_fraction, or 1
// (pure element) when unset.
func (e *Engine) massFractionFor(state config.CalibrationState, isotope model.IsotopeKey) float64 {
	if elem, ok := state.Ionic[isotope]; ok && elem.MassFraction > 0 {
		return elem.MassFraction
	}
	return 1.0
}

// Quantified returns the cached quantitation results for a sample.
func (e *Engine) Quantified(sample string) []model.Quantified {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.quantified[sample]
}

// QuantifiedByRef looks up a single Quantified record by the
// ParticleRef assigned to its source Particle at detection time. The
// ref stays valid across a RecomputeQuantitation call even though the
// underlying slice is rebuilt, since identity rides on the uuid rather
// than a slice index.
func (e *Engine) QuantifiedByRef(sample string, ref uuid.UUID) (model.Quantified, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, q := range e.quantified[sample] {
		if q.ParticleRef == ref {
			return q, true
		}
	}
	return model.Quantified{}, false
}

// SNRBand classifies a particle's peak SNR into the display bands the
// original PyQt results table colors rows by. Bands are inclusive
// thresholds on the low side: a particle exactly at a boundary falls
// into the lower (more severe) band.
type SNRBand int

const (
	SNRCritical SNRBand = iota // snr <= 1.1
	SNRLow                     // snr <= 1.2
	SNRMarginal                // snr <= 1.5
	SNRClear                   // snr > 1.5
)

func (b SNRBand) String() string {
	switch b {
	case SNRCritical:
		return "Critical"
	case SNRLow:
		return "Low"
	case SNRMarginal:
		return "Marginal"
	case SNRClear:
		return "Clear"
	default:
		return "Unknown"
	}
}

// classifySNR buckets a particle's SNR using the original's
// update_results_table color-banding thresholds.
func classifySNR(snr float64) SNRBand {
	switch {
	case snr <= 1.1:
		return SNRCritical
	case snr <= 1.2:
		return SNRLow
	case snr <= 1.5:
		return SNRMarginal
	default:
		return SNRClear
	}
}

// DetectionSummary aggregates a unit's particle list into the
// counts/height/SNR digest collaborators display.
type DetectionSummary struct {
	ParticleCount int
	TotalCounts   float64
	MeanCounts    float64
	MedianCounts  float64
	SNRBuckets    map[SNRBand]int // histogram of particle SNR across the four display bands
}

// Summarize computes a DetectionSummary for a unit's cached particles.
func (e *Engine) Summarize(sample string, isotope model.IsotopeKey) DetectionSummary {
	particles, _ := e.ParticlesFor(sample, isotope)
	if len(particles) == 0 {
		return DetectionSummary{}
	}
	counts := make([]float64, len(particles))
	total := 0.0
	buckets := map[SNRBand]int{SNRCritical: 0, SNRLow: 0, SNRMarginal: 0, SNRClear: 0}
	for i, p := range particles {
		counts[i] = p.TotalCounts
		total += p.TotalCounts
		buckets[classifySNR(p.SNR())]++
	}
	sort.Float64s(counts)
	median := counts[len(counts)/2]
	if len(counts)%2 == 0 {
		median = (counts[len(counts)/2-1] + counts[len(counts)/2]) / 2
	}
	return DetectionSummary{
		ParticleCount: len(particles),
		TotalCounts:   total,
		MeanCounts:    total / float64(len(particles)),
		MedianCounts:  median,
		SNRBuckets:    buckets,
	}
}
