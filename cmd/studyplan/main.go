// Package main provides the studyplan command line tool.
package main

import (
	"os"

	"github.com/muaviaUsmani/studyplan/internal/cli"
)

func main() {
	if err := cli.BuildCLI().Execute(); err != nil {
		os.Exit(1)
	}
}
