package main

import "github.com/user/policygen/cmd"

func main() {
	cmd.Execute()
}
