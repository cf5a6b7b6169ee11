package main

import (
	"fmt"
	"log"
	"os"

	"github.com/nci/eopackage/checksum"
)

func ensure(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	if len(os.Args) != 2 {
		log.Fatal("Please provide a path to a package.sha1 file")
	}

	manifest := checksum.NewManifest()
	ensure(manifest.Read(os.Args[1]))

	bad := 0
	err := manifest.IterativelyVerify(func(path string, matches bool) error {
		if !matches {
			bad++
			fmt.Printf("mismatch: %s\n", path)
		}
		return nil
	})
	ensure(err)

	if bad > 0 {
		fmt.Printf("%d of %d files failed verification\n", bad, manifest.Len())
		os.Exit(1)
	}
	fmt.Printf("%d files ok\n", manifest.Len())
}
