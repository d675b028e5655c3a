package main

import "github.com/mcoot/ari-accounts/internal/cli"

func main() {
	cli.Execute()
}
