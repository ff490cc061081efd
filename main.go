package main

import "github.com/klytics/docbridge/cmd"

func main() {
	cmd.Execute()
}
