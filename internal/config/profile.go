package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Strategy names accepted in a retrieval profile.
var profileStrategies = map[string]struct{}{
	"lexical":  {},
	"article":  {},
	"section":  {},
	"semantic": {},
}

// RetrievalProfile overrides fusion and strategy tuning. Zero or missing
// entries keep the built-in defaults.
type RetrievalProfile struct {
	RRFK          int                `yaml:"rrf_k"`
	FusionWeights map[string]float64 `yaml:"fusion_weights"`
	FusionCaps    map[string]int     `yaml:"fusion_caps"`
	StrategyCaps  map[string]int     `yaml:"strategy_caps"`
}

// LoadRetrievalProfile reads the YAML profile at path. An empty path yields
// an empty profile; an unreadable or malformed file is an error.
func LoadRetrievalProfile(path string) (RetrievalProfile, error) {
	if strings.TrimSpace(path) == "" {
		return RetrievalProfile{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return RetrievalProfile{}, fmt.Errorf("read retrieval profile: %w", err)
	}
	var profile RetrievalProfile
	if err := yaml.Unmarshal(raw, &profile); err != nil {
		return RetrievalProfile{}, fmt.Errorf("parse retrieval profile %s: %w", path, err)
	}
	return profile.sanitize(), nil
}

func (p RetrievalProfile) sanitize() RetrievalProfile {
	out := RetrievalProfile{
		FusionWeights: map[string]float64{},
		FusionCaps:    map[string]int{},
		StrategyCaps:  map[string]int{},
	}
	if p.RRFK > 0 {
		out.RRFK = p.RRFK
	}
	for name, w := range p.FusionWeights {
		if key, ok := profileKey("fusion_weights", name); ok && w > 0 {
			out.FusionWeights[key] = w
		}
	}
	for name, c := range p.FusionCaps {
		if key, ok := profileKey("fusion_caps", name); ok && c > 0 {
			out.FusionCaps[key] = c
		}
	}
	for name, c := range p.StrategyCaps {
		if key, ok := profileKey("strategy_caps", name); ok && c > 0 {
			out.StrategyCaps[key] = c
		}
	}
	return out
}

func profileKey(section, name string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if _, ok := profileStrategies[key]; !ok {
		slog.Warn("retrieval_profile_unknown_strategy", "section", section, "strategy", name)
		return "", false
	}
	return key, true
}
