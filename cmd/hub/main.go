package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/orcidhub/hub/internal/bootstrap"
	"github.com/orcidhub/hub/pkg/version"
)

func main() {
	var (
		confDir     = flag.String("conf", "etc", "configuration directory")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(string(version.GetVersion().Json()))
		return
	}

	if err := bootstrap.Run(*confDir); err != nil {
		fmt.Fprintf(os.Stderr, "hub failed to start: %v\n", err)
		os.Exit(1)
	}
}
