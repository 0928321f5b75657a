// Command simrun runs an iOS app on the best available simulator.
package main

import "github.com/devicelab-dev/simrun/pkg/cli"

func main() {
	cli.Execute()
}
