// Command winagent is the hidden-console scraping agent the library-side
// spawner launches once per session: it owns a Win32 console nobody ever
// sees, mirrors its cell buffer to a client over a named pipe as VT100, and
// turns the client's keystrokes back into console input records.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
