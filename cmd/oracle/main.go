package main

import "github.com/strangelove-ventures/fomc-oracle/cmd/oracle/cmd"

func main() {
	cmd.Execute()
}
