package models

// DefaultModel is used when a session has no explicit model selection.
const DefaultModel = "gemini-2.0-flash"

const (
	defaultTemperature     float32 = 1.0
	defaultTopP            float32 = 0.95
	defaultTopK            int32   = 40
	defaultMaxOutputTokens int32   = 8192
)

// GenerationParams is the sampling snapshot attached to a session. A turn
// runs with the snapshot taken at submission time; later edits affect only
// later turns.
type GenerationParams struct {
	Model             string  `json:"model"`
	Temperature       float32 `json:"temperature"`
	TopP              float32 `json:"top_p"`
	TopK              int32   `json:"top_k"`
	MaxOutputTokens   int32   `json:"max_output_tokens"`
	SystemInstruction string  `json:"system_instruction,omitempty"`
}

// DefaultParams returns the stock snapshot.
func DefaultParams() GenerationParams {
	return GenerationParams{
		Model:           DefaultModel,
		Temperature:     defaultTemperature,
		TopP:            defaultTopP,
		TopK:            defaultTopK,
		MaxOutputTokens: defaultMaxOutputTokens,
	}
}

// Clamp coerces out-of-range values into the ranges the backend accepts and
// fills zero values with defaults.
func (p GenerationParams) Clamp() GenerationParams {
	if p.Model == "" {
		p.Model = DefaultModel
	}
	if p.Temperature < 0 {
		p.Temperature = 0
	}
	if p.Temperature > 2 {
		p.Temperature = 2
	}
	if p.TopP <= 0 || p.TopP > 1 {
		p.TopP = defaultTopP
	}
	if p.TopK <= 0 {
		p.TopK = defaultTopK
	}
	if p.MaxOutputTokens <= 0 {
		p.MaxOutputTokens = defaultMaxOutputTokens
	}
	return p
}

// WithSystem returns a copy with the system instruction replaced.
func (p GenerationParams) WithSystem(instruction string) GenerationParams {
	p.SystemInstruction = instruction
	return p
}
