package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/relaywire/mcpwire"
	"github.com/relaywire/mcpwire/servers/filesystem"
)

// This example runs two routers over in-process pipes. The "server" side
// exposes the filesystem toolset; the "client" side exposes roots/list. Each
// side calls into the other over the same connection, which is the point:
// there is no fixed caller or responder, only two peers.
func main() {
	path := flag.String("path", "", "Root directory to expose (required)")
	flag.StringVar(path, "p", "", "Root directory to expose (required) (shorthand)")

	flag.Parse()

	if *path == "" {
		fmt.Println("Error: path is required")
		flag.Usage()
		os.Exit(1)
	}

	srvReader, srvWriter := io.Pipe()
	cliReader, cliWriter := io.Pipe()

	cliIO := mcpwire.NewStdIO(cliReader, srvWriter)
	srvIO := mcpwire.NewStdIO(srvReader, cliWriter)

	toolset, err := filesystem.NewToolset([]string{*path})
	if err != nil {
		fmt.Println("Error: failed to create filesystem toolset:", err)
		os.Exit(1)
	}

	srv := mcpwire.NewRouter()
	toolset.Register(srv.Registry())
	defer srv.Close()

	srvSess, err := srvIO.StartSession(context.Background())
	if err != nil {
		fmt.Println("Error: failed to start server session:", err)
		os.Exit(1)
	}
	go srv.Serve(srvSess)

	cli := newClient(cliIO, *path)
	go cli.run()

	<-cli.done

	// The server side can call back over the same connection.
	roots, err := srv.ListRoots(context.Background())
	if err != nil {
		fmt.Println("Error: failed to list client roots:", err)
	} else {
		for _, root := range roots.Roots {
			fmt.Printf("Client root: %s (%s)\n", root.Name, root.URI)
		}
	}

	cli.stop()
	srvSess.Stop()
}
