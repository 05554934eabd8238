package main

import "github.com/bryanchriswhite/nativeshot/cmd/nativeshot/commands"

func main() {
	commands.Execute()
}
