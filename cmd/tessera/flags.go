package main

import "github.com/urfave/cli/v3"

var (
	n          int64
	mb         int64
	nb         int64
	p          int64
	q          int64
	lookahead  int64
	target     string
	seed       int64
	inputPath  string
	logLevel   string
	logFormat  string
)

func commonMatrixFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "n",
			Usage:       "matrix order (n x n)",
			Value:       512,
			Destination: &n,
		},
		&cli.Int64Flag{
			Name:        "mb",
			Usage:       "row tile size",
			Value:       128,
			Destination: &mb,
		},
		&cli.Int64Flag{
			Name:        "nb",
			Usage:       "column tile size (defaults to mb when unset)",
			Destination: &nb,
		},
		&cli.Int64Flag{
			Name:        "p",
			Usage:       "process-grid row count",
			Value:       1,
			Destination: &p,
		},
		&cli.Int64Flag{
			Name:        "q",
			Usage:       "process-grid column count",
			Value:       1,
			Destination: &q,
		},
		&cli.Int64Flag{
			Name:        "lookahead",
			Usage:       "panel lookahead depth",
			Value:       1,
			Destination: &lookahead,
		},
		&cli.StringFlag{
			Name:        "target",
			Usage:       "kernel execution target (host, devices)",
			Value:       "host",
			Destination: &target,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "PRNG seed for a generated test matrix (ignored with --input)",
			Value:       1,
			Destination: &seed,
		},
		&cli.StringFlag{
			Name:        "input",
			Usage:       "path to a raw column-major float64 matrix file; generates a diagonally dominant test matrix when unset",
			Destination: &inputPath,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
	}
}
