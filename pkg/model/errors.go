package model

// ConfigurationError signals invalid or unsupported configuration, such as
// an unknown scanner tag, framework, or LLM provider. It is fatal and
// surfaced immediately to the caller, never retried.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Msg
}
