package main

import "jet-tools/go/jet-builder/cmd"

func main() {
	cmd.Execute()
}
