package main

import (
	"fmt"

	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Server  ServerCmd  `cmd:"" help:"Run the game server"`
	Client  ClientCmd  `cmd:"" help:"Connect as an interactive terminal player"`
	Version VersionCmd `cmd:"" help:"Print the version"`
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(version)
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("trickster"),
		kong.Description("Real-time multiplayer trick-taking card games over WebSocket"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
