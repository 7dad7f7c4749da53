// Package config parses the exactly two pieces of configuration the core
// is visible to (spec §6): an optional listening port flag, and the
// HEAP_SWAP directory environment variable (read directly by pkg/heap,
// not duplicated here). This surface is small enough that pulling in the
// teacher's toml/pflag stack would be pure overhead — see DESIGN.md's
// "ambient stack" entry for why stdlib flag is the right tool here.
package config

import "flag"

// Config is the process-level configuration cmd/rayforced acts on.
type Config struct {
	// Port, if non-zero, enables the listening socket at startup (spec
	// §6: "presence or absence of that flag is the only core-visible
	// option").
	Port int
}

// Parse parses args (normally os.Args[1:]) into a Config.
func Parse(args []string) (Config, error) {
	fs := flag.NewFlagSet("rayforced", flag.ContinueOnError)
	port := fs.Int("port", 0, "listen for IPC connections on this TCP port; 0 disables the listener")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return Config{Port: *port}, nil
}
