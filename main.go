package main

import "github.com/notargets/goptdesign/cmd"

func main() {
	cmd.Execute()
}
