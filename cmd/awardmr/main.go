package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mapreduce "github.com/emptyOVO/mrkit-awards"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := mapreduce.NewRootCommand()
	rootCmd.AddCommand(newFlowCommand())
	must(rootCmd.ExecuteContext(ctx))
}

func must(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
