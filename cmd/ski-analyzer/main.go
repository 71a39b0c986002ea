package main

import "github.com/alpineroute/ski-analyzer/internal/cmd"

func main() {
	cmd.Execute()
}
