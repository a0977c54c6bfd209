package main

import "github.com/Tiliavir/trivial-work-report/cmd"

func main() {
	cmd.Execute()
}
