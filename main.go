package main

import "github.com/aouyang1/inkframe/cmd"

func main() {
	cmd.Execute()
}
