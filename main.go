package main

import "github.com/opsdata/etl-scripts/cmd"

func main() {
	cmd.Execute()
}
