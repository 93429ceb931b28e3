// Command rbacctl is a construction harness over the RBAC core: it wires an
// in-memory KV adapter to the repository and exposes its operations as
// subcommands for manual exercising. There is no server and no JWT
// validation here, just the construction wiring a server would otherwise do
// before handing repositories to its handlers.
package main

import "github.com/terraconstructs/accessguard/cmd/rbacctl/cmd"

func main() {
	cmd.Execute()
}
