package main

import "github.com/devid8642/weather-alert/internal/cli"

func main() {
	cli.Execute()
}
