package main

import "utiligee/cmd"

func main() {
	cmd.Execute()
}
