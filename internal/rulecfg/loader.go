package rulecfg

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wonny/earnsight/pkg/logger"
)

// Load reads a ruleset from a YAML file. Unknown keys are rejected so
// a typo in a threshold name fails loudly instead of silently falling
// back to a default. An empty path returns the built-in defaults.
func Load(path string, log *logger.Logger) (*Rules, error) {
	if path == "" {
		rules := Default()
		log.WithField("rules_hash", rules.Hash()).Info("Signal rules: built-in defaults")
		return rules, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signal rules: %w", err)
	}

	rules := Default()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(rules); err != nil {
		return nil, fmt.Errorf("parse signal rules %s: %w", path, err)
	}

	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid signal rules %s: %w", path, err)
	}

	rules.hash = hashRules(rules)
	log.WithFields(map[string]interface{}{
		"path":       path,
		"rules_hash": rules.Hash(),
	}).Info("Signal rules loaded")
	return rules, nil
}
