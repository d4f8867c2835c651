// Command snapshot-dump decompresses an order log snapshot written by the
// counter server and prints the JSON document to stdout.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s <snapshot.json.gz>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := dump(flag.Arg(0), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "snapshot-dump:", err)
		os.Exit(1)
	}
}

func dump(path string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open snapshot")
	}
	defer f.Close()

	zr, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrap(err, "open gzip reader")
	}
	defer zr.Close()

	if _, err := io.Copy(out, zr); err != nil {
		return errors.Wrap(err, "read snapshot")
	}
	fmt.Fprintln(out)
	return nil
}
