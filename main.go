package main

import "github.com/Chative-analytics/server/internal/cli"

func main() {
	cli.Execute()
}
