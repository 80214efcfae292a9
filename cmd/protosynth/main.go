// Command protosynth converts between JSON and the protobuf wire format
// using schemas loaded at runtime from .proto files or descriptor sets.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
