// Package profile holds the runtime configuration surface.
package profile

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Profile is the resolved configuration. Values come from flags, env vars
// (prefix LECTERN) and .env, bound through viper in cmd/lectern.
type Profile struct {
	// Addr is the HTTP listen address.
	Addr string
	// Data is the directory holding the persistent vector store.
	Data string
	// Docs is the directory of course transcripts ingested at startup.
	Docs string

	// ProviderBaseURL is the OpenAI-compatible endpoint serving both chat
	// completions and embeddings.
	ProviderBaseURL string
	ProviderAPIKey  string
	Model           string
	EmbeddingModel  string

	ChunkSize    int
	ChunkOverlap int
	MaxResults   int
	MaxHistory   int
	Temperature  float64
	MaxTokens    int
}

// GetProfile resolves the profile from viper.
func GetProfile() (*Profile, error) {
	p := &Profile{
		Addr:            viper.GetString("addr"),
		Data:            viper.GetString("data"),
		Docs:            viper.GetString("docs"),
		ProviderBaseURL: viper.GetString("provider-base-url"),
		ProviderAPIKey:  viper.GetString("provider-api-key"),
		Model:           viper.GetString("model"),
		EmbeddingModel:  viper.GetString("embedding-model"),
		ChunkSize:       viper.GetInt("chunk-size"),
		ChunkOverlap:    viper.GetInt("chunk-overlap"),
		MaxResults:      viper.GetInt("max-results"),
		MaxHistory:      viper.GetInt("max-history"),
		Temperature:     viper.GetFloat64("temperature"),
		MaxTokens:       viper.GetInt("max-tokens"),
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Profile) validate() error {
	if p.Data == "" {
		return errors.New("data directory is required")
	}
	if p.ChunkSize <= 0 {
		return errors.New("chunk size must be positive")
	}
	if p.ChunkOverlap < 0 || p.ChunkOverlap >= p.ChunkSize {
		return errors.New("chunk overlap must be non-negative and smaller than chunk size")
	}
	return nil
}
