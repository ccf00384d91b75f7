package main

import "github.com/murmurhq/murmur/cmd"

func main() {
	cmd.Execute()
}
