// Package client provides a Go client for the sprint board API.
//
// The API is hypermedia driven: the client discovers the sprint, task and
// user collection URLs from the API root and follows the links embedded in
// every record. Collections are cached locally and can be kept in step with
// the server through a Socket connected to the realtime relay.
//
// # Basic Usage
//
//	c, err := client.New("http://localhost:8000/api/",
//	    client.WithSession(sess),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Load the backlog
//	backlog, err := c.Tasks.GetBacklog(ctx)
//
//	// Move a task into sprint 3, in progress, first position
//	ok, err := c.Tasks.MoveTo(ctx, task, client.StatusActive, client.SprintID(3), 0)
//
// # Authentication
//
// Every request carries "Authorization: Token <token>" while the session
// holds a token, and unsafe same-origin requests echo the "csrftoken" cookie
// in the X-CSRFToken header. Both are applied by the client's transport, not
// by individual calls.
//
// # Socket Events
//
//	sock, err := c.NewSocket("3")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sock.Events().On("task:update", func(ev events.Event) {
//	    fmt.Println("task changed:", ev.ID)
//	})
//	if err := sock.Open(ctx).Wait(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer sock.Close()
//
//	sock.Send(map[string]interface{}{"model": "task", "action": "drag", "id": 7})
package client
