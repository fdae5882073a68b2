package main

import "xrpl-usdt-bot/internal/cli"

func main() {
	cli.Execute()
}
