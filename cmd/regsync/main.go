package main

import "github.com/aweris/regsync/cmd/regsync/cmd"

func main() {
	cmd.Execute()
}
