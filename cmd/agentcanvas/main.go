// Command agentcanvas runs the AgentCanvas session and API service.
//
//	agentcanvas serve     start the HTTP server
//	agentcanvas keygen    create an identity token signing key and its JWKS
//	agentcanvas bench     measure session codec and membership cache throughput
//
// Configuration comes from flags, AGENTCANVAS_* environment variables, or a
// YAML file given with --config.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
