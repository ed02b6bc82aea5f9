package main

import (
	"context"
	"fmt"

	"github.com/trezcool/fourmis/core"
)

func (cli *commandLine) completeMissions() error {
	n, err := cli.completer.CompleteEnded(context.Background(), core.NowFunc())
	if err != nil {
		return err
	}
	fmt.Printf("%d registrations completed\n", n)
	return nil
}
