// Command contagion builds influence graphs from social interactions and
// ranks accounts by viral centrality.
package main

import "github.com/papapumpkin/contagion/cmd"

func main() {
	cmd.Execute()
}
