package main

import (
	"os"

	"github.com/thalib/dock/cmd/dock/internal/commands"
)

func main() {
	os.Exit(commands.Execute())
}
