package main

import (
	"log"

	"dbdb/cmd/dbdb/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		log.Fatal(err)
	}
}
