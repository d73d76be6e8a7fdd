package main

import "github.com/jcdickinson/faultbook/cmd"

func main() {
	cmd.Execute()
}
