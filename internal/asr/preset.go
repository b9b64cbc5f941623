package asr

// Preset is a data row describing how to run the model for a class of
// input: model key, compute precision, beam size, temperature schedule, and
// the longest chunk the model is asked to transcribe in one call. Presets
// are data, not code branches, so adding a new one is a table edit.
type Preset struct {
	Name             string
	ModelKey         string
	ComputeType      string
	BeamSize         int
	Temperatures     []float64
	MaxChunkSeconds  float64
}

// RoutePreset picks a preset by (duration_minutes, is_interview). It is a
// pure function: same inputs, same preset, every time.
func RoutePreset(durationMinutes float64, isInterview bool, cfg RouterConfig) Preset {
	switch {
	case durationMinutes <= 20:
		return cfg.FastShort
	case isInterview:
		return cfg.Interview
	default:
		return cfg.LongMonologue
	}
}

// RouterConfig holds the three presets the router chooses between. Callers
// build one from internal/config so operators can retune presets without a
// code change.
type RouterConfig struct {
	FastShort     Preset
	Interview     Preset
	LongMonologue Preset
}

// DefaultRouterConfig returns the presets described in the engine's
// configuration surface (WHISPER_MODEL et al. set the base model; the
// refinement model is used by stage 2, not by the router).
func DefaultRouterConfig(baseModel, device, compute string, beam int, temps []float64, chunkSeconds float64) RouterConfig {
	return RouterConfig{
		FastShort: Preset{
			Name:            "fast short",
			ModelKey:        baseModel,
			ComputeType:     compute,
			BeamSize:        beam,
			Temperatures:    temps,
			MaxChunkSeconds: chunkSeconds,
		},
		Interview: Preset{
			Name:            "interview",
			ModelKey:        baseModel,
			ComputeType:     compute,
			BeamSize:        beam,
			Temperatures:    temps,
			MaxChunkSeconds: chunkSeconds,
		},
		LongMonologue: Preset{
			Name:            "long monologue",
			ModelKey:        baseModel,
			ComputeType:     compute,
			BeamSize:        beam,
			Temperatures:    temps,
			MaxChunkSeconds: chunkSeconds,
		},
	}
}
