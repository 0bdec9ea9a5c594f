package main

import "github.com/lumenvid/recap/internal/cli"

func main() {
	cli.Execute()
}
