// The main package for the scout executable.
package main

import (
	"github.com/JakeFAU/recruiter-scout/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
