// Command mediamosaic builds sprite-sheet galleries for image directories and
// serves them over HTTP.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
