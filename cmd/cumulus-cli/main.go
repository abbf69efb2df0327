package main

import (
	"context"

	"cumulus-backend/cmd/cumulus-cli/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
