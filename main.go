package main

import "github.com/Mohsinsiddi/w3kit/cmd"

func main() {
	cmd.Execute()
}
