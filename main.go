// Package main is the entrypoint for the application.
package main

import (
	"huddle/cmd"
)

func main() {
	cmd.Run()
}
