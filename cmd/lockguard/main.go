// cmd/lockguard/main.go

// Command lockguard runs a command while holding a distributed lock.
//
//	lockguard -config /etc/lockguard -lock chargeOrder -bind orderId=42 -- ./charge.sh 42
//	lockguard -key 'report-#{day}' -bind day=mon -try -wait 2 -- make report
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
