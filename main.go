package main

import "github.com/jfmyers9/loopdeck/cmd"

func main() {
	cmd.Execute()
}
