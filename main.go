package main

import "github.com/synapse-agents/synapse/cmd"

func main() {
	cmd.Execute()
}
