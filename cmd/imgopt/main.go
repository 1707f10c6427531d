// Command imgopt re-encodes images to the smallest output meeting a byte
// budget and/or a perceptual difference bound.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
