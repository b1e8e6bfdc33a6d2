package main

import "github.com/javanhut/gam/cli"

func main() {
	cli.Execute()
}
