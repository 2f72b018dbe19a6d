// g1 runs the conversation orchestrator and the robot-side executor for a
// Unitree G1 humanoid.
package main

import (
	"fmt"
	"os"

	"github.com/teslashibe/go-g1/cmd/g1/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
