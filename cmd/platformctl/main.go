// Package main provides the platformctl CLI for bootstrapping and
// reconfiguring the demo platform's repositories and signing keys.
package main

import "github.com/demostack/platformctl/cmd/platformctl/commands"

func main() {
	commands.Execute(Version)
}
