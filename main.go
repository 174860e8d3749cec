package main

import "github.com/KaramelBytes/shiftlog-cli/cmd"

func main() {
	cmd.Execute()
}
