package main

import "odyssey-archiver/cmd"

func main() {
	cmd.Execute()
}
