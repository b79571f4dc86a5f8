package main

import "github.com/audiolibrelab/singalong/cmd"

func main() {
	cmd.Execute()
}
