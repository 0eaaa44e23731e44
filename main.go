package main

import "github.com/papapumpkin/semverx/cmd"

func main() {
	cmd.Execute()
}
