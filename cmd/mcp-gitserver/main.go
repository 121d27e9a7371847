// Command mcp-gitserver serves the version control tool set over HTTP.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/effective-security/mcphost/toolserver"
	"github.com/effective-security/mcphost/toolserver/gittools"
	"github.com/effective-security/xlog"
)

func main() {
	addr := flag.String("addr", ":8002", "address to listen on")
	dir := flag.String("dir", "/repo", "repository directory for version control operations")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
	if *debug {
		xlog.SetGlobalLogLevel(xlog.DEBUG)
	} else {
		xlog.SetGlobalLogLevel(xlog.INFO)
	}

	provider, err := gittools.New(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create git tools: %v\n", err)
		os.Exit(1)
	}
	tools, err := provider.Tools()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build tool schemas: %v\n", err)
		os.Exit(1)
	}

	srv := toolserver.New(tools...)
	fmt.Printf("git tool server listening on %s, repository directory %s\n", *addr, *dir)
	if err := http.ListenAndServe(*addr, srv.Handler()); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}
