package main

import (
	"context"
	"fmt"
	"time"
)

var nowFunc = time.Now // mockable

// purgeSessions deletes expired sessions; their auth tokens cascade.
func (cli *commandLine) purgeSessions() error {
	n, err := cli.sessRepo.PurgeExpired(context.Background(), nowFunc().UTC())
	if err != nil {
		return err
	}
	fmt.Printf("purged %d expired session(s)\n", n)
	return nil
}
