package config

import (
	"os"
	"strings"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	PostgresDSN  string
	KafkaBrokers []string

	// BootstrapAdmins seeds the role directory's admin membership on a
	// fresh in-memory deployment.
	BootstrapAdmins []string

	// ProxyDeployer is the address installed as the upgrade proxy admin.
	// Empty means the well-known development deployer.
	ProxyDeployer string

	EnableBallotOutboxRelay bool
	EnableRolesOutboxRelay  bool
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "plenum"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	var admins []string
	for _, value := range strings.Split(os.Getenv("BOOTSTRAP_ADMINS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			admins = append(admins, value)
		}
	}
	if len(admins) == 0 {
		admins = []string{"root"}
	}

	return Config{
		ServiceName:     service,
		HTTPPort:        port,
		PostgresDSN:     os.Getenv("POSTGRES_DSN"),
		KafkaBrokers:    brokers,
		BootstrapAdmins: admins,
		ProxyDeployer:   strings.TrimSpace(os.Getenv("PROXY_DEPLOYER")),

		EnableBallotOutboxRelay: envBool("ENABLE_BALLOT_OUTBOX_RELAY", true),
		EnableRolesOutboxRelay:  envBool("ENABLE_ROLES_OUTBOX_RELAY", true),
	}, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
