package main

import "inquiry-agent/internal/cli"

func main() {
	cli.Execute()
}
