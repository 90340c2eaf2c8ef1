// Command todoctl is a terminal client for the todo API.
package main

import (
	"flag"
	"fmt"
	"os"
)

func main() {
	server := flag.String("server", envOr("TODOCTL_SERVER", "http://localhost:8080"), "todo API base URL")
	flag.Parse()

	store, err := defaultCredStore()
	if err != nil {
		fail(os.Stderr, err.Error())
		os.Exit(1)
	}

	c := &cli{
		api:   newAPIClient(*server, nil),
		store: store,
		in:    os.Stdin,
		out:   os.Stdout,
		err:   os.Stderr,
	}
	code := c.run(flag.Args())
	if code != 0 {
		fmt.Fprintln(os.Stderr)
	}
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
