package cmd

import "fmt"

// RunStop is a documented no-op: this binary never daemonizes itself
// (daemonization is the out-of-scope service wrapper's job per spec.md
// §1), so there is no persistent process here to stop.
func RunStop() error {
	fmt.Println("pvefw-core does not daemonize itself; stop the service wrapper that schedules its cycles")
	return nil
}
