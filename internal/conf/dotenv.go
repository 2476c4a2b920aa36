package conf

import (
	"log"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads .env files (default ./.env) without overriding variables already set.
// A missing file is not an error; it is logged to stderr and false is returned.
func LoadDotEnv(files ...string) bool {
	if err := godotenv.Load(files...); err != nil {
		log.Println("No .env file found, using environment variables")
		return false
	}
	return true
}
