package scoring

// Config tunes the response of the scoring service.
type Config struct {
	// TopContributions limits the explanation to the features with the
	// largest absolute contribution. Zero returns every feature.
	TopContributions int
}

func DefaultConfig() *Config {
	return &Config{}
}
