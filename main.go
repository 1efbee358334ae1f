package main

import "foodval-go/internal/cli"

func main() {
	cli.Execute()
}
