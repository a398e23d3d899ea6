package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/relaywire/mcpwire"
)

type client struct {
	router    *mcpwire.Router
	transport mcpwire.ClientTransport
	path      string

	sess mcpwire.Session
	done chan struct{}
}

func newClient(transport mcpwire.ClientTransport, path string) *client {
	c := &client{
		router:    mcpwire.NewRouter(),
		transport: transport,
		path:      path,
		done:      make(chan struct{}),
	}

	// Expose roots/list so the server side can discover our workspace.
	c.router.RegisterHandler(mcpwire.MethodRootsList, mcpwire.NewHandler(
		func(context.Context, mcpwire.RequestContext, struct{}) (mcpwire.ListRootsResult, error) {
			return mcpwire.ListRootsResult{
				Roots: []mcpwire.Root{
					{URI: "file://" + path, Name: "workspace"},
				},
			}, nil
		}))

	return c
}

func (c *client) run() {
	defer close(c.done)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sess, err := c.transport.StartSession(ctx)
	if err != nil {
		fmt.Println("Error: failed to start client session:", err)
		return
	}
	c.sess = sess
	go c.router.Serve(sess)

	if err := c.router.Ping(ctx); err != nil {
		fmt.Println("Error: ping failed:", err)
		return
	}

	raw, err := c.router.Call(ctx, mcpwire.MethodToolsList, mcpwire.ListToolsParams{}, 0)
	if err != nil {
		fmt.Println("Error: failed to list tools:", err)
		return
	}

	var tools mcpwire.ListToolsResult
	if err := json.Unmarshal(raw, &tools); err != nil {
		fmt.Println("Error: failed to decode tool list:", err)
		return
	}
	for _, tool := range tools.Tools {
		fmt.Printf("Tool: %s\n", tool.Name)
	}

	args, _ := json.Marshal(map[string]string{"path": c.path})
	raw, err = c.router.Call(ctx, mcpwire.MethodToolsCall, mcpwire.CallToolParams{
		Name:      "list_directory",
		Arguments: args,
	}, 0)
	if err != nil {
		fmt.Println("Error: failed to call list_directory:", err)
		return
	}

	var result mcpwire.CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		fmt.Println("Error: failed to decode tool result:", err)
		return
	}
	for _, content := range result.Content {
		fmt.Println(content.Text)
	}
}

func (c *client) stop() {
	c.router.Close()
	if c.sess != nil {
		c.sess.Stop()
	}
}
