package main

import (
	"fmt"
	"io/ioutil"
	"net/http"
	"os"

	"github.com/lnsuite/lnurl"

	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.NewApp()

	app.Name = "lnurl-client"
	app.Usage = "Cli for the wallet side of the LNURL protocol"
	app.Commands = []*cli.Command{
		decodeCommand,
		encodeCommand,
		payRequestCommand,
	}

	err := app.Run(os.Args)
	if err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[lnurl-client] %v\n", err)
	os.Exit(1)
}

var decodeCommand = &cli.Command{
	Name:      "decode",
	Usage:     "Decode a bech32 encoded LNURL string",
	ArgsUsage: "<lnurl>",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return fmt.Errorf("expected a single LNURL argument")
		}

		url, err := lnurl.DecodeURL(ctx.Args().First())
		if err != nil {
			return fmt.Errorf("error decoding LNURL: %w", err)
		}

		fmt.Println(url)
		return nil
	},
}

var encodeCommand = &cli.Command{
	Name:      "encode",
	Usage:     "Encode a URL as a bech32 LNURL string",
	ArgsUsage: "<url>",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return fmt.Errorf("expected a single URL argument")
		}

		enc, err := lnurl.EncodeURL(ctx.Args().First())
		if err != nil {
			return fmt.Errorf("error encoding URL: %w", err)
		}

		fmt.Println(enc)
		return nil
	},
}

func get(url string) ([]byte, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("GET request error: %w", err)
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}

	return body, nil
}
