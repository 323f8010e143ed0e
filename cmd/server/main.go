package main

import (
	"os"

	"SafeYatra/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		os.Exit(1)
	}
}
