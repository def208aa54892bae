// Package main provides the entry point for the citawatch CLI.
//
// citawatch watches consular appointment calendars for free slots ("huecos")
// and alerts the operator on Telegram when new ones appear.
//
// Usage:
//
//	citawatch init
//	citawatch watch
//	citawatch check [target...]
//
// See --help for all available options.
package main

// main is the entry point for citawatch.
func main() {
	Execute()
}
