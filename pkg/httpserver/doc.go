// Package httpserver wraps http.Server with graceful shutdown suited to
// long-lived streaming connections.
//
// Run blocks until the context is cancelled, SIGINT/SIGTERM arrives, or
// the listener fails, then drains in-flight requests within the shutdown
// timeout. The write timeout defaults to zero because server-sent event
// responses stay open indefinitely; set one explicitly for servers that
// only answer short requests.
//
// # Usage
//
//	srv := httpserver.New(
//	    httpserver.WithAddr(":8000"),
//	    httpserver.WithLogger(log),
//	)
//	if err := srv.Run(ctx, router); err != nil {
//	    // handle error
//	}
package httpserver
