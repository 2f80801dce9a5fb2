package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/caredata/migrator/internal/cli"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	os.Exit(cli.Execute())
}
