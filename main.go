package main

import "emrtd/cmd"

func main() {
	cmd.Execute()
}
