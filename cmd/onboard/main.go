// Command onboard runs onboarding wizards in a terminal or over HTTP and
// checks schemas and payloads.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
