package main

import "github.com/harborline/authcore/cmd/authcore/cmd"

func main() {
	cmd.Execute()
}
