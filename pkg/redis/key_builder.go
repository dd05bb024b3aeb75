package redis

import "fmt"

// KeyBuilder provides environment-aware Redis key building functionality
type KeyBuilder struct {
	prefix string // Environment prefix (staging/prod)
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	prefix := "prod"
	if environment == "development" || environment == "staging" {
		prefix = "staging"
	}

	return &KeyBuilder{
		prefix: prefix,
	}
}

// BuildKey constructs a Redis key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// GetPrefix returns the current environment prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

// KeyQuestionResults is the cached tally of a question at one generation
func (kb *KeyBuilder) KeyQuestionResults(questionID string, generation int64) string {
	return kb.BuildKey(fmt.Sprintf(KeyQuestionResults, questionID, generation))
}

// KeyResultsGeneration counts the ballot writes of a question
func (kb *KeyBuilder) KeyResultsGeneration(questionID string) string {
	return kb.BuildKey(fmt.Sprintf(KeyResultsGeneration, questionID))
}

func (kb *KeyBuilder) KeyLoginFailures(username, ipHash string) string {
	return kb.BuildKey(fmt.Sprintf(KeyLoginFailures, username, ipHash))
}

// KeyCustom builds a key from a custom pattern
func (kb *KeyBuilder) KeyCustom(pattern string, args ...interface{}) string {
	key := fmt.Sprintf(pattern, args...)
	return kb.BuildKey(key)
}
