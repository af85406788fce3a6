package config

import (
	"os"
	"strings"
)

const (
	appEnvVar              = "APP_ENV"
	environmentDevelopment = "development"
	environmentProduction  = "production"
	environmentStaging     = "staging"
)

const (
	EnvironmentDevelopment = environmentDevelopment
	EnvironmentProduction  = environmentProduction
	EnvironmentStaging     = environmentStaging
)

var environmentAliases = map[string]string{
	"prod":  environmentProduction,
	"stage": environmentStaging,
	"stag":  environmentStaging,
	"dev":   environmentDevelopment,
	"local": environmentDevelopment,
}

// getAppEnvironment reads APP_ENV and defaults to development.
func getAppEnvironment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv(appEnvVar)))
	if env == "" {
		return environmentDevelopment
	}
	if canonical, ok := environmentAliases[env]; ok {
		return canonical
	}
	return env
}

// resolveEnvSpecificPath swaps the default config path for the file of the
// current environment. Explicit paths are returned untouched.
func resolveEnvSpecificPath(path, defaultPath string, envPaths map[string]string) string {
	if path == "" {
		path = defaultPath
	}
	if path != defaultPath {
		return path
	}

	envPath, ok := envPaths[getAppEnvironment()]
	if !ok {
		return path
	}
	if _, err := os.Stat(envPath); err != nil {
		return path
	}
	return envPath
}

// AppEnvironment returns the normalised APP_ENV value.
func AppEnvironment() string {
	return getAppEnvironment()
}

// IsProductionLike reports whether env is production or staging.
func IsProductionLike(env string) bool {
	switch env {
	case environmentProduction, environmentStaging:
		return true
	default:
		return false
	}
}
