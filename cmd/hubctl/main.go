// Command hubctl is the PlatformHub administration CLI.
package main

import "github.com/platformhub/platformhub/internal/cli"

func main() {
	cli.Execute()
}
