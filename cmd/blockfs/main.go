package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dargueta/blockfs/fs"
	"github.com/dargueta/blockfs/internal/selftest"
)

func main() {
	app := cli.App{
		Name:      "blockfs",
		Usage:     "Boot a block-image file system, sync it, and run its self-test suite",
		ArgsUsage: "DISK_IMAGE_PATH",
		Action:    run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: blockfs <disk image file>", 1)
	}
	path := c.Args().Get(0)

	fsys := fs.New()
	if err := fsys.Boot(path); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if err := fsys.Sync(); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if err := selftest.Run(fsys); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if err := fsys.Sync(); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return nil
}
