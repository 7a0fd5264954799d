package main

import "github.com/coachbook/server/cmd/server/cmd"

func main() {
	cmd.Execute()
}
