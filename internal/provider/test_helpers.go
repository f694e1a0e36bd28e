package provider

import (
	"fmt"
	"os"
	"strings"
	"testing"
)

// Test environment configuration constants.
const (
	// Environment variables for test configuration.
	EnvTestServerHost   = "AD_TEST_SERVER_HOST"
	EnvTestServerPort   = "AD_TEST_SERVER_PORT"
	EnvTestUseSSL       = "AD_TEST_USE_SSL"
	EnvTestBaseDN       = "AD_TEST_BASE_DN"
	EnvTestBindUser     = "AD_TEST_BIND_USER"
	EnvTestBindPassword = "AD_TEST_BIND_PASSWORD"
	EnvTestBindMethod   = "AD_TEST_BIND_METHOD"
	EnvTestUsername     = "AD_TEST_USERNAME"

	// Default values for testing.
	DefaultTestBaseDN   = "DC=example,DC=com"
	DefaultTestUsername = "Administrator"
)

// TestConfig holds common test configuration.
type TestConfig struct {
	ServerHost   string
	ServerPort   string
	UseSSL       bool
	BaseDN       string
	BindUser     string
	BindPassword string
	BindMethod   string

	// Username is an account known to exist in the test directory.
	Username string
}

// GetTestConfig returns the test configuration from environment variables.
func GetTestConfig() *TestConfig {
	return &TestConfig{
		ServerHost:   os.Getenv(EnvTestServerHost),
		ServerPort:   os.Getenv(EnvTestServerPort),
		UseSSL:       strings.EqualFold(os.Getenv(EnvTestUseSSL), "true"),
		BaseDN:       getEnvWithDefault(EnvTestBaseDN, DefaultTestBaseDN),
		BindUser:     os.Getenv(EnvTestBindUser),
		BindPassword: os.Getenv(EnvTestBindPassword),
		BindMethod:   os.Getenv(EnvTestBindMethod),
		Username:     getEnvWithDefault(EnvTestUsername, DefaultTestUsername),
	}
}

// IsAccTest returns true if acceptance tests should run.
func IsAccTest() bool {
	return os.Getenv("TF_ACC") != ""
}

// SkipIfNotAccTest skips the test if TF_ACC is not set.
func SkipIfNotAccTest(t *testing.T) {
	if !IsAccTest() {
		t.Skip("Skipping acceptance test - set TF_ACC=1 to run")
	}
}

// testAccPreCheckWithConfig is an enhanced pre-check function that validates test environment.
func testAccPreCheckWithConfig(t *testing.T) *TestConfig {
	SkipIfNotAccTest(t)

	config := GetTestConfig()

	required := map[string]string{
		EnvTestServerHost:   config.ServerHost,
		EnvTestBindUser:     config.BindUser,
		EnvTestBindPassword: config.BindPassword,
	}
	for name, value := range required {
		if value == "" {
			t.Skipf("Skipping test: %s must be set", name)
		}
	}

	return config
}

// TestProviderConfig generates provider configuration for tests.
func TestProviderConfig() string {
	config := GetTestConfig()

	var providerConfig strings.Builder
	providerConfig.WriteString("provider \"adlookup\" {\n")
	fmt.Fprintf(&providerConfig, "  server_host   = %q\n", config.ServerHost)
	if config.ServerPort != "" {
		fmt.Fprintf(&providerConfig, "  server_port   = %s\n", config.ServerPort)
	}
	if config.UseSSL {
		providerConfig.WriteString("  use_ssl       = true\n")
	}
	fmt.Fprintf(&providerConfig, "  base_dn       = %q\n", config.BaseDN)
	fmt.Fprintf(&providerConfig, "  bind_user     = %q\n", config.BindUser)
	fmt.Fprintf(&providerConfig, "  bind_password = %q\n", config.BindPassword)
	if config.BindMethod != "" {
		fmt.Fprintf(&providerConfig, "  bind_method   = %q\n", config.BindMethod)
	}
	providerConfig.WriteString("}\n")

	return providerConfig.String()
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
