package main

import (
	"github.com/heavenprotocol/publisher/cmd/publisher/cli"
)

func main() {
	cli.Execute()
}
