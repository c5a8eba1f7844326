package main

import "github.com/rzbill/localai/pkg/cli/cmd"

func main() {
	cmd.Execute()
}
