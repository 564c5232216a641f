package main

import "github.com/derickschaefer/dailywx/cmd"

func main() {
	cmd.Execute()
}
