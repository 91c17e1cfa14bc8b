package main

import "airdash/internal/cli"

func main() {
	cli.Execute()
}
