// Package main provides the seqnet CLI.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

const version = "v0.1.0-dev"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		logrus.WithError(err).Error("seqnet failed")
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		usage(out)
		return nil
	}

	switch args[0] {
	case "version":
		fmt.Fprintf(out, "seqnet %s\n", version)
		return nil
	case "run":
		return runCommand(args[1:], out)
	case "encode":
		return encodeCommand(args[1:], out)
	case "help", "-h", "--help":
		usage(out)
		return nil
	default:
		usage(out)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func usage(out io.Writer) {
	fmt.Fprintln(out, "seqnet - recurrent sequence layers for Go")
	fmt.Fprintf(out, "Version: %s\n\n", version)
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  version    Show version")
	fmt.Fprintln(out, "  run        Run a recurrent layer over a random sequence")
	fmt.Fprintln(out, "  encode     Tokenize texts and run them through a bidirectional LSTM")
}

// newLogger returns a text logger at the named level.
func newLogger(level string, out io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return logger, nil
}
