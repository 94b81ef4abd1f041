package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override the config file. They may also be
// set in a .env file in the working directory.
const (
	EnvPrinterAddress = "PRINTER_ADDRESS"
	EnvDailyNoteDir   = "DAILY_NOTE_DIR"
	EnvNoteTemplate   = "DAILY_NOTE_TEMPLATE"
	EnvQuoteURL       = "QUOTE_URL"
	EnvListen         = "CHORENOTE_LISTEN"
	EnvTimezone       = "CHORENOTE_TIMEZONE"
)

// EnvFile is the dotenv file read by LoadEnvFile.
var EnvFile = ".env"

// LoadEnvFile loads EnvFile into the process environment without replacing
// variables that are already set. A missing file is not an error.
func LoadEnvFile() error {
	if _, err := os.Stat(EnvFile); err != nil {
		return nil
	}
	return godotenv.Load(EnvFile)
}

// ApplyEnv overrides config fields from the environment. Empty variables
// leave the file value in place.
func ApplyEnv(c *Config) {
	override(&c.Printer.Address, EnvPrinterAddress)
	override(&c.Note.DailyDir, EnvDailyNoteDir)
	override(&c.Note.TemplatePath, EnvNoteTemplate)
	override(&c.Quote.URL, EnvQuoteURL)
	override(&c.Listen, EnvListen)
	override(&c.Timezone, EnvTimezone)
}

func override(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}
