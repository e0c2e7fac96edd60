// Command shopctl maintains a shop database from the terminal.
package main

import "github.com/safar/go-shop-bot/cmd/shopctl/commands"

func main() {
	commands.Execute()
}
