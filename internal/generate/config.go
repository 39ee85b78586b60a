package generate

// DecodingConfig holds the sampling parameters sent to the language model.
type DecodingConfig struct {
	Seed              int     `json:"seed"`
	TopK              int     `json:"top_k"`
	TopP              float64 `json:"top_p"`
	MaxTokens         int     `json:"max_new_tokens"`
	MinTokens         int     `json:"min_new_tokens"`
	Temperature       float64 `json:"temperature"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
}

// DefaultDecodingConfig returns the decoding parameters used for answer
// generation. Seed -1 asks the provider to pick one.
func DefaultDecodingConfig() DecodingConfig {
	return DecodingConfig{
		Seed:              -1,
		TopK:              20,
		TopP:              1,
		MaxTokens:         1024,
		MinTokens:         1,
		Temperature:       0.5,
		RepetitionPenalty: 1,
	}
}
