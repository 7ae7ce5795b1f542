// Package main is the entry point for the sdtrack CLI tool, which fetches
// Pokémon Showdown replays and tracks per-team results and usage.
package main

import "github.com/pable/go-showdown-tracker/cmd"

func main() {
	cmd.Execute()
}
