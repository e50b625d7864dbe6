package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/guardshare/internal/client/client"
	"github.com/dmitrijs2005/guardshare/internal/client/config"
	"github.com/dmitrijs2005/guardshare/internal/common"
	"github.com/dmitrijs2005/guardshare/internal/filex"
	"github.com/dmitrijs2005/guardshare/internal/flagx"
	"github.com/dmitrijs2005/guardshare/internal/linkaccess"
	"github.com/dmitrijs2005/guardshare/internal/netx"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2

	maxPasswordPrompts = 3
)

var commandValuedFlags = []string{"-o", "-u"}

type fetcher interface {
	Download(ctx context.Context, url string, w io.Writer) (int64, error)
}

type App struct {
	config *config.Config
	client client.Client
	blobs  fetcher
	reader *bufio.Reader
	out    io.Writer
	errOut io.Writer
}

func NewApp(c *config.Config) (*App, error) {
	apiClient, err := client.NewLinkAccessClient(c.ServerEndpointAddr, c.AccessToken)
	if err != nil {
		return nil, err
	}

	return &App{
		config: c,
		client: apiClient,
		blobs:  netx.NewDownloader(nil),
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
		errOut: os.Stderr,
	}, nil
}

type commandArgs struct {
	linkID   string
	username string
	output   string
}

func parseCommandArgs(args []string, positionals []string) (commandArgs, error) {
	var ca commandArgs

	fs := flag.NewFlagSet("command", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&ca.output, "o", "", "output path")
	fs.StringVar(&ca.username, "u", "", "username required by the link")
	if err := fs.Parse(flagx.FilterArgs(args, commandValuedFlags)); err != nil {
		return ca, err
	}

	if len(positionals) != 1 {
		return ca, errors.New("expected exactly one link id")
	}
	ca.linkID = positionals[0]
	return ca, nil
}

func (a *App) usage() {
	fmt.Fprintln(a.errOut, "usage: guardshare [-a addr] [-t token] [-d seconds] view <linkID> [-u username]")
	fmt.Fprintln(a.errOut, "       guardshare [-a addr] [-t token] [-d seconds] download <linkID> [-u username] [-o path]")
}

// Run executes the command in args (os.Args[1:]) and returns the exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	defer a.client.Close()

	valued := append(append([]string{}, config.GlobalValuedFlags...), commandValuedFlags...)
	pos := flagx.Positionals(args, valued)
	if len(pos) == 0 {
		a.usage()
		return exitUsage
	}
	if pos[0] == "help" {
		a.usage()
		return exitOK
	}

	ca, err := parseCommandArgs(args, pos[1:])
	if err != nil {
		fmt.Fprintln(a.errOut, "error:", err)
		a.usage()
		return exitUsage
	}

	switch pos[0] {
	case "view":
		err = a.view(ctx, ca)
	case "download":
		err = a.download(ctx, ca)
	default:
		fmt.Fprintf(a.errOut, "unknown command %q\n", pos[0])
		a.usage()
		return exitUsage
	}

	if err != nil {
		fmt.Fprintln(a.errOut, "error:", err)
		return exitError
	}
	return exitOK
}

type accessCall func(ctx context.Context, req linkaccess.Request) (*linkaccess.Outcome, error)

// withPassword performs call and, while the server rejects the verification
// values, asks for the link password on an interactive terminal.
func (a *App) withPassword(ctx context.Context, call accessCall, req linkaccess.Request) (*linkaccess.Outcome, error) {
	for attempt := 0; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, a.config.RequestTimeout)
		out, err := call(callCtx, req)
		cancel()

		if !errors.Is(err, client.ErrInvalidCredentials) || attempt >= maxPasswordPrompts ||
			!isTerminal(int(os.Stdin.Fd())) {
			return out, err
		}

		if attempt > 0 {
			fmt.Fprintln(a.errOut, "Wrong password, try again.")
		}
		pw, err := GetPassword(a.out, "Link password")
		if err != nil {
			return nil, fmt.Errorf("read password: %w", err)
		}
		req.Password = string(pw)
		common.WipeByteArray(pw)
	}
}

func (a *App) view(ctx context.Context, ca commandArgs) error {
	out, err := a.withPassword(ctx, a.client.View, linkaccess.Request{LinkID: ca.linkID, Username: ca.username})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Link:        %s\n", out.LinkName)
	if out.LinkDescription != "" {
		fmt.Fprintf(a.out, "Description: %s\n", out.LinkDescription)
	}
	fmt.Fprintf(a.out, "File:        %s (%s)\n", out.FileDisplayName, out.FileOriginalName)
	fmt.Fprintf(a.out, "Type:        %s\n", out.FileMediaType)
	fmt.Fprintf(a.out, "Size:        %d bytes\n", out.FileSizeBytes)
	fmt.Fprintf(a.out, "Download:    %t\n", out.DownloadAllowed)
	fmt.Fprintf(a.out, "Accesses:    %d\n", out.AccessCount)
	return nil
}

func (a *App) download(ctx context.Context, ca commandArgs) error {
	out, err := a.withPassword(ctx, a.client.Download, linkaccess.Request{LinkID: ca.linkID, Username: ca.username})
	if err != nil {
		return err
	}
	if out.DownloadURL == "" {
		return errors.New("server returned no download URL")
	}

	path := ca.output
	if path == "" {
		path = filex.SafeName(out.FileOriginalName, filex.SafeName(out.FileDisplayName, ca.linkID))
	}

	dst, err := filex.CreateOutput(path, false)
	if err != nil {
		return err
	}
	n, err := a.blobs.Download(ctx, out.DownloadURL, dst)
	if err != nil {
		dst.Abort()
		return err
	}
	if err := dst.Commit(); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Saved %d bytes to %s\n", n, dst.Path())
	return nil
}
