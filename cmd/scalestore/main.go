// Command scalestore inspects and maintains a scalestore document store:
// cached API responses and operator settings.
//
//	scalestore [-config config.yml] [-env .env] <command> [args]
//
// Commands:
//
//	version                             build version
//	status                              component health
//	cache list [-limit n]               stored cache entries
//	cache show <api> [params...]        one entry and whether it is still valid
//	cache delete <api> [params...]      remove one entry
//	cache purge                         remove every expired entry
//	settings list                       effective settings
//	settings get <name>                 one setting
//	settings set [-description d] <name> <value>
//	settings reset <name>               drop the persisted value
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}
