package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/myhealthdata/internal/client/cli"
)

func main() {
	ctx := context.Background()
	if err := cli.Execute(ctx, cli.DefaultFactory, os.Args[1:], nil, nil); err != nil {
		fmt.Fprintln(os.Stderr, "phr:", err)
		os.Exit(1)
	}
}
