package model

import "time"

// PolicyDocument is the result of generating a policy for one batch and
// framework. Documents are written once; refinement produces a new
// document with a bumped version, never an in-place edit.
type PolicyDocument struct {
	Framework                Framework `json:"framework"`
	BatchKey                 string    `json:"batch_key"`
	VulnerabilitiesAddressed []string  `json:"vulnerabilities_addressed"`
	GeneratedText            string    `json:"generated_text"`
	GeneratedAt              time.Time `json:"generated_at"`
	ModelIdentifier          string    `json:"model_identifier"`
	Version                  int       `json:"version"`
}
