package config

// LLMConfig groups the external LLM-provider collaborator's selection and
// default call parameters. The engine core never talks to a provider
// directly; cmd/negentropy builds the provider.LLMProvider implementation
// from this config and hands it to the Service Factories.
type LLMConfig struct {
	Provider        string
	Model           string
	Temperature     float64
	MaxTokens       int
	ReasoningEffort string // thinking mode / reasoning effort, provider-specific
	GRPCAddr        string // address of the gRPC LLM sidecar, when Provider == "grpc"
}

func loadLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:        getEnv("NE_LLM_PROVIDER", "grpc"),
		Model:           getEnv("NE_LLM_MODEL", "default"),
		Temperature:     getEnvFloat("NE_LLM_TEMPERATURE", 0.2),
		MaxTokens:       getEnvInt("NE_LLM_MAX_TOKENS", 4096),
		ReasoningEffort: getEnv("NE_LLM_REASONING_EFFORT", ""),
		GRPCAddr:        getEnv("NE_LLM_GRPC_ADDR", "localhost:50051"),
	}
}
