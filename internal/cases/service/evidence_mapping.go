package service

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"leasepack/internal/facts"
)

//go:embed evidence_questions.yaml
var evidenceQuestionsYAML []byte

type tokenRule struct {
	Token string             `yaml:"token"`
	Kind  facts.EvidenceKind `yaml:"kind"`
}

// EvidenceMapping resolves a question id to the evidence kind it flags. The
// table is exact; the token pass only covers ids added after the table.
type EvidenceMapping struct {
	Questions map[string]facts.EvidenceKind `yaml:"questions"`
	Fallback  []tokenRule                   `yaml:"fallback_tokens"`
}

// DefaultEvidenceMapping parses the embedded table.
func DefaultEvidenceMapping() (*EvidenceMapping, error) {
	return ParseEvidenceMapping(evidenceQuestionsYAML)
}

func ParseEvidenceMapping(data []byte) (*EvidenceMapping, error) {
	var m EvidenceMapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse evidence mapping: %w", err)
	}
	for q, kind := range m.Questions {
		if !kind.Valid() {
			return nil, fmt.Errorf("evidence mapping: question %q has unknown kind %q", q, kind)
		}
	}
	for _, r := range m.Fallback {
		if r.Token == "" || !r.Kind.Valid() {
			return nil, fmt.Errorf("evidence mapping: invalid fallback rule %q -> %q", r.Token, r.Kind)
		}
	}
	return &m, nil
}

// Resolve returns the kind for questionID. inferred is true when the kind came
// from the token list; ok is false when nothing matched.
func (m *EvidenceMapping) Resolve(questionID string) (kind facts.EvidenceKind, inferred, ok bool) {
	id := strings.ToLower(strings.TrimSpace(questionID))
	if kind, ok := m.Questions[id]; ok {
		return kind, false, true
	}
	for _, r := range m.Fallback {
		if strings.Contains(id, r.Token) {
			return r.Kind, true, true
		}
	}
	return "", false, false
}
