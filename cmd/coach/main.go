// Package main provides the interview coach binary.
//
// Usage:
//
//	coach serve [--config config.yaml]
//	coach [--server URL] <command> [args]
//
// Commands:
//
//	serve       - run the HTTP API and the AudioSocket telephony server
//	screening   - fetch screening questions for a role
//	feedback    - grade an answer to a screening question
//	transcribe  - transcribe a recorded answer
//	ask         - run a text interview against the final round endpoints
package main

import (
	"fmt"
	"os"

	"github.com/amanullahtanweer/interview-coach/cmd/coach/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
