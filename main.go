package main

import "github.com/racecomms/jelbuild/cmd"

func main() {
	cmd.Execute()
}
