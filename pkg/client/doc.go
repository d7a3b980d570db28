// Package client provides a Go SDK for the fair queue engine's HTTP API.
//
// It is a hand-written wrapper over net/http, exposing typed methods for
// enqueue, introspection, reschedule, and worker admin, plus a WebSocket
// client for real-time event streaming.
//
// # Basic Usage
//
//	c, err := client.New("http://localhost:8080")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Enqueue a task. args[0] is the group id.
//	err = c.Enqueue(ctx, "emails", []interface{}{"user-42", "welcome"})
//
// # WebSocket Events
//
//	err := c.ConnectWebSocket(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.CloseWebSocket()
//
//	for event := range c.Events() {
//	    fmt.Printf("Event: %s\n", event.Type)
//	}
//
// # Configuration
//
// The client supports functional options for configuration:
//
//	c, err := client.New("http://localhost:8080",
//	    client.WithAPIKey("your-api-key"),
//	    client.WithTimeout(30 * time.Second),
//	)
package client
