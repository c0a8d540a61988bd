// Package newsloop provides a client library for the Newsloop audio API.
//
// # Overview
//
// Newsloop generates spoken audio digests from a user's chosen sources.
// This package covers the calls a client makes: signing in, reading and
// saving source preferences, listing and deleting generated audio files,
// and following a generation job over Server-Sent Events.
//
// # Quick Start
//
//	client, err := newsloop.NewClient(newsloop.Config{
//	    SessionCookie: savedCookie,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	urls, err := client.Audio().List(ctx)
//
// # Authentication
//
// The API authenticates with a session cookie. SignUpOrLogin exchanges a
// Google identity credential for that cookie; the client stores it and
// sends it on every request, including the event stream. Persist
// Client.SessionCookie and pass it back through Config.SessionCookie on the
// next run.
//
// # Generation
//
// Start opens a text/event-stream response. Each "message" event carries
// a free-text progress line. The server may also send a named "done"
// event. Read events with Stream.Next and call Stream.Close to cancel:
//
//	stream, err := client.Generation().Start(ctx)
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	for {
//	    ev, err := stream.Next()
//	    if err != nil {
//	        break
//	    }
//	    fmt.Println(ev.Name, ev.Data)
//	}
//
// # Errors
//
// Non-2xx responses are returned as *Error carrying the status code.
// errors.Is(err, newsloop.ErrUnauthorized) matches a 401. Bodies that do
// not match the documented shape yield ErrInvalidResponse.
//
// # Retries
//
// GET requests are retried with exponential backoff on network errors and
// on 5xx/429 responses. POST requests are sent once.
package newsloop
