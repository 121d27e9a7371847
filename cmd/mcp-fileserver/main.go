// Command mcp-fileserver serves the file management tool set over HTTP.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/effective-security/mcphost/toolserver"
	"github.com/effective-security/mcphost/toolserver/filetools"
	"github.com/effective-security/xlog"
)

func main() {
	addr := flag.String("addr", ":8001", "address to listen on")
	dir := flag.String("dir", "/data", "base directory for file operations")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
	if *debug {
		xlog.SetGlobalLogLevel(xlog.DEBUG)
	} else {
		xlog.SetGlobalLogLevel(xlog.INFO)
	}

	provider, err := filetools.New(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create file tools: %v\n", err)
		os.Exit(1)
	}
	tools, err := provider.Tools()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build tool schemas: %v\n", err)
		os.Exit(1)
	}

	srv := toolserver.New(tools...)
	fmt.Printf("file tool server listening on %s, base directory %s\n", *addr, *dir)
	if err := http.ListenAndServe(*addr, srv.Handler()); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}
