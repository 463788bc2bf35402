package config // package config loads application configuration from environment variables

import (
    "log"      // log is used to report configuration errors and halt execution
    "os"       // os provides access to environment variables
    "strconv"  // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations
// and costs.  Payment provider credentials are loaded here once and passed
// explicitly into the gateway client; no package keeps a global session.
type Config struct {
    Env            string // application environment (e.g. "dev", "prod")
    Port           string // HTTP port to listen on
    DBUser         string // database username
    DBPass         string // database password (optional)
    DBHost         string // database host address
    DBPort         string // database port number
    DBName         string // database name
    JWTSecret      string // secret used to sign JWTs
    AccessTTLMin   int    // access token time‑to‑live in minutes
    RefreshTTLDays int    // refresh token time‑to‑live in days
    BcryptCost     int    // bcrypt cost for password hashing

    BookingTTLMin int    // how long a PENDING booking may hold seats before the reaper cancels it
    Currency      string // ISO currency code used for payment orders (single currency only)

    PayPalBaseURL   string // base URL of the PayPal REST API (sandbox or live)
    PayPalClientID  string // OAuth client id for the PayPal app
    PayPalSecret    string // OAuth client secret for the PayPal app
    PayPalReturnURL string // where the provider redirects after approval
    PayPalCancelURL string // where the provider redirects after cancellation

    SMTPHost string // SMTP server host for confirmation mail (optional)
    SMTPPort string // SMTP server port
    SMTPUser string // SMTP account used as the From address
    SMTPPass string // SMTP account password
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  SMTP settings are
// optional: when unset the confirmation mail step is skipped and only
// logged.
func Load() Config {
    return Config{
        Env:            must("APP_ENV"),             // environment (dev/test/prod)
        Port:           must("APP_PORT"),            // port to bind the HTTP server
        DBUser:         must("DB_USER"),             // database user
        DBPass:         os.Getenv("DB_PASS"),        // database password (empty allowed)
        DBHost:         must("DB_HOST"),             // database host
        DBPort:         must("DB_PORT"),             // database port
        DBName:         must("DB_NAME"),             // database name
        JWTSecret:      must("JWT_SECRET"),          // secret used for signing JWTs
        AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),   // TTL for access tokens in minutes
        RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"), // TTL for refresh tokens in days
        BcryptCost:     mustInt("BCRYPT_COST"),      // bcrypt cost factor

        BookingTTLMin: intOr("BOOKING_TTL_MIN", 15), // unpaid bookings expire after this many minutes
        Currency:      envStr("CURRENCY", "USD"),    // currency code sent to the payment provider

        PayPalBaseURL:   envStr("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com"),
        PayPalClientID:  must("PAYPAL_CLIENT_ID"),     // provider credentials are required
        PayPalSecret:    must("PAYPAL_CLIENT_SECRET"), // because settlement cannot run without them
        PayPalReturnURL: envStr("PAYPAL_RETURN_URL", "http://localhost:8080/v1/payments/success"),
        PayPalCancelURL: envStr("PAYPAL_CANCEL_URL", "http://localhost:8080/v1/payments/cancel"),

        SMTPHost: os.Getenv("SMTP_HOST"),
        SMTPPort: envStr("SMTP_PORT", "587"),
        SMTPUser: os.Getenv("SMTP_USER"),
        SMTPPass: os.Getenv("SMTP_PASSWORD"),
    }
}

// must retrieves the value of a required environment variable.  If the
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

// intOr reads an optional integer environment variable, falling back to the
// provided default when the variable is unset or malformed.
func intOr(key string, def int) int {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    n, err := strconv.Atoi(v)
    if err != nil {
        log.Printf("invalid int for %s: %q, using default %d", key, v, def)
        return def
    }
    return n
}
