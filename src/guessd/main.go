package main

import "github.com/q-controller/guessit/src/guessd/cmd"

func main() {
	cmd.Execute()
}
