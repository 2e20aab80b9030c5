// Package main provides the entry point for the crew-engine CLI.
package main

import (
	"yqhp/crew-engine/cmd"
)

func main() {
	cmd.Execute()
}
