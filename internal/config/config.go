package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time parses lease term durations
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. Market parameters are fixed at deployment: they
// are read once at startup and never mutated afterwards.
type Config struct {
	Env          string // application environment (e.g. "dev", "prod")
	Port         string // HTTP port to listen on
	DBUser       string // database username
	DBPass       string // database password (optional)
	DBHost       string // database host address
	DBPort       string // database port number
	DBName       string // database name
	JWTSecret    string // secret used to sign JWTs
	AccessTTLMin int    // access token time-to-live in minutes
	BcryptCost   int    // bcrypt cost for password hashing

	Operator           string        // escrow account the engine holds funds and approvals under
	MaxListings        int           // maximum number of listing ids ever assigned
	MinLeaseTerm       time.Duration // exclusive lower bound on lease terms
	MaxLeaseTerm       time.Duration // exclusive upper bound on lease terms
	FeeNum             uint64        // lessor's share of the rent, numerator
	FeeDen             uint64        // lessor's share of the rent, denominator
	LesseeCanLiquidate bool          // policy switch: may the lessee trigger liquidation
	DevEndpoints       bool          // expose the mint/faucet seeding endpoints
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message. Market parameters
// default to the reference deployment constants.
func Load() Config {
	return Config{
		Env:          must("APP_ENV"),
		Port:         must("APP_PORT"),
		DBUser:       must("DB_USER"),
		DBPass:       os.Getenv("DB_PASS"), // empty allowed
		DBHost:       must("DB_HOST"),
		DBPort:       must("DB_PORT"),
		DBName:       must("DB_NAME"),
		JWTSecret:    must("JWT_SECRET"),
		AccessTTLMin: mustInt("ACCESS_TOKEN_TTL_MIN"),
		BcryptCost:   mustInt("BCRYPT_COST"),

		Operator:           getenv("MARKET_OPERATOR", "market-escrow"),
		MaxListings:        atoi(getenv("MARKET_MAX_LISTINGS", "10000")),
		MinLeaseTerm:       parseDur(getenv("MARKET_MIN_LEASE_TERM", "60s")),
		MaxLeaseTerm:       parseDur(getenv("MARKET_MAX_LEASE_TERM", "864000s")),
		FeeNum:             uint64(atoi(getenv("MARKET_FEE_NUM", "95"))),
		FeeDen:             uint64(atoi(getenv("MARKET_FEE_DEN", "100"))),
		LesseeCanLiquidate: getenv("MARKET_LESSEE_CAN_LIQUIDATE", "false") == "true",
		DevEndpoints:       getenv("MARKET_DEV_ENDPOINTS", "false") == "true",
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
