package main

import (
	"context"

	"railfare-backend/cmd/fares-cli/commands"
	"railfare-backend/lib/serviceutil"
	"railfare-backend/lib/telemetry"
)

func main() {
	telemetry.SetupFromEnv(context.Background(), "fares-cli")
	commands.ExecuteContext(serviceutil.SignalContext())
}
