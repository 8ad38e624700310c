package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// SeedAccount describes one account the bootstrap seeder provisions.
type SeedAccount struct {
	Username    string
	Email       string
	FirstName   string
	LastName    string
	DisplayName string
	Roles       []string
}

// SeedOptions is passed by value into the seeder. There is no process-wide
// seed state; everything the seeder needs travels through this struct.
type SeedOptions struct {
	Enabled      bool
	LogPasswords bool
	Roles        []string
	Admin        SeedAccount
	User         SeedAccount
}

type Config struct {
	Env          string
	ServerPort   string
	BaseURL      string
	DatabaseDSN  string
	AccessSecret string

	KafkaBroker   string
	KafkaTopic    string
	KafkaUsername string
	KafkaPassword string

	Seed SeedOptions
}

func (c Config) IsProduction() bool {
	return c.Env == "prod"
}

func LoadConfig() Config {
	if os.Getenv("ENV") != "prod" {
		if err := godotenv.Overload(); err != nil {
			log.Println("Warning: env file not found or could not be loaded:", err)
		}
	}

	return Config{
		Env:          os.Getenv("ENV"),
		ServerPort:   os.Getenv("SERVER_PORT"),
		BaseURL:      os.Getenv("BASE_URL"),
		DatabaseDSN:  os.Getenv("DATABASE_DSN"),
		AccessSecret: os.Getenv("ACCESS_SECRET"),

		KafkaBroker:   os.Getenv("KAFKA_BROKER"),
		KafkaTopic:    os.Getenv("KAFKA_TOPIC"),
		KafkaUsername: os.Getenv("KAFKA_USERNAME"),
		KafkaPassword: os.Getenv("KAFKA_PASSWORD"),

		Seed: loadSeedOptions(),
	}
}

func loadSeedOptions() SeedOptions {
	return SeedOptions{
		Enabled:      os.Getenv("SEED_ENABLED") == "true",
		LogPasswords: os.Getenv("SEED_LOG_PASSWORDS") == "true",
		Roles:        []string{"user", "admin"},
		Admin: SeedAccount{
			Username:    envOr("SEED_ADMIN_USERNAME", "admin"),
			Email:       envOr("SEED_ADMIN_EMAIL", "admin@localhost.com"),
			FirstName:   "Admin",
			LastName:    "Local",
			DisplayName: "Admin Local",
			Roles:       []string{"user", "admin"},
		},
		User: SeedAccount{
			Username:    envOr("SEED_USER_USERNAME", "user"),
			Email:       envOr("SEED_USER_EMAIL", "user@localhost.com"),
			FirstName:   "User",
			LastName:    "Local",
			DisplayName: "User Local",
			Roles:       []string{"user"},
		},
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
