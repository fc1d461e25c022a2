package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// envVarPattern matches ${VAR_NAME} or ${VAR_NAME:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// substituteEnvVars replaces ${VAR_NAME} references in content with the
// named environment variable's value, or its ":-default" fallback.
func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}

		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 4 {
			defaultValue = groups[3]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// VerifierConfig holds the environment-driven settings a response
// verifier needs at startup: the canister/root key it trusts, the clock
// skew it tolerates, and the version range it will accept.
type VerifierConfig struct {
	CanisterID          string
	RootPublicKeyPath   string
	AllowedTimeOffset   time.Duration
	MinRequestedVersion int
	MaxRequestedVersion int
	LogLevel            string
}

// LoadVerifierConfig reads VerifierConfig from environment variables.
func LoadVerifierConfig() (*VerifierConfig, error) {
	cfg := &VerifierConfig{
		CanisterID:          getEnv("VERIFIER_CANISTER_ID", ""),
		RootPublicKeyPath:   getEnv("VERIFIER_ROOT_KEY_PATH", ""),
		AllowedTimeOffset:   getEnvDuration("VERIFIER_ALLOWED_TIME_OFFSET", 5*time.Minute),
		MinRequestedVersion: getEnvInt("VERIFIER_MIN_VERSION", 1),
		MaxRequestedVersion: getEnvInt("VERIFIER_MAX_VERSION", 2),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
	}
	return cfg, nil
}

// Validate checks that the required fields for production use are present.
func (c *VerifierConfig) Validate() error {
	var errs []string
	if c.CanisterID == "" {
		errs = append(errs, "VERIFIER_CANISTER_ID is required but not set")
	}
	if c.RootPublicKeyPath == "" {
		errs = append(errs, "VERIFIER_ROOT_KEY_PATH is required but not set")
	}
	if c.MinRequestedVersion < 1 {
		errs = append(errs, "VERIFIER_MIN_VERSION must be at least 1")
	}
	if c.MaxRequestedVersion < c.MinRequestedVersion {
		errs = append(errs, "VERIFIER_MAX_VERSION must not be lower than VERIFIER_MIN_VERSION")
	}
	if len(errs) > 0 {
		return fmt.Errorf("verifier configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// RouteDescriptor is one entry of a CertificationPolicy: the CEL
// expression string the producer should attach to responses whose
// request path starts with Prefix.
type RouteDescriptor struct {
	Prefix        string `yaml:"prefix"`
	CelExpression string `yaml:"cel_expression"`
	FullCertify   bool   `yaml:"full_certify"`
}

// CertificationPolicy is a route-prefix-ordered list of default CEL
// descriptors a demo producer consults when certifying a response, loaded
// from a YAML file with ${VAR} environment substitution.
type CertificationPolicy struct {
	Environment string            `yaml:"environment"`
	Routes      []RouteDescriptor `yaml:"routes"`
	DefaultCel  string            `yaml:"default_cel_expression"`
}

// LoadCertificationPolicy loads a CertificationPolicy from a YAML file,
// substituting ${VAR_NAME} environment references before parsing.
func LoadCertificationPolicy(path string) (*CertificationPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read certification policy %s: %w", path, err)
	}
	expanded := substituteEnvVars(string(data))

	var policy CertificationPolicy
	if err := yaml.Unmarshal([]byte(expanded), &policy); err != nil {
		return nil, fmt.Errorf("failed to parse certification policy %s: %w", path, err)
	}
	if policy.DefaultCel == "" {
		policy.DefaultCel = `default_certification(ValidationArgs{no_certification:Empty{}})`
	}
	return &policy, nil
}

// ExpressionFor returns the CEL expression that applies to requestPath,
// matching the longest configured route prefix, falling back to DefaultCel.
func (p *CertificationPolicy) ExpressionFor(requestPath string) string {
	best := ""
	bestLen := -1
	for _, r := range p.Routes {
		if strings.HasPrefix(requestPath, r.Prefix) && len(r.Prefix) > bestLen {
			best = r.CelExpression
			bestLen = len(r.Prefix)
		}
	}
	if bestLen < 0 {
		return p.DefaultCel
	}
	return best
}
