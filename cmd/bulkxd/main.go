// Command bulkxd serves the bulk API in front of a partitioned document store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
)

func main() {
	flags := pflag.NewFlagSet("bulkxd", pflag.ContinueOnError)
	files := flags.StringSliceP("config", "c", nil, "config files to load, later files override earlier ones")
	flags.String("http.address", "", "address the HTTP server listens on")
	flags.String("log.level", "", "minimum log level")
	flags.String("storage.engine", "", "document engine, one of memory, elasticsearch or arangodb")
	if err := flags.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *files, flags); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, files []string, flags *pflag.FlagSet) error {
	conf, err := loadConfig(ctx, files, flags)
	if err != nil {
		return err
	}
	defer conf.Close()

	d, err := newDaemon(ctx, conf, os.Stdout)
	if err != nil {
		return err
	}
	return d.serve(ctx)
}
