package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/nci/eopackage/assembler"
	"github.com/nci/eopackage/cogtif"
)

func ensure(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

type sourceList []string

func (s *sourceList) String() string {
	return strings.Join(*s, ",")
}

func (s *sourceList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// bandName derives a measurement name from a positional argument,
// either "name=path" or a bare path whose stem becomes the name.
func bandName(arg string) (string, string) {
	if i := strings.Index(arg, "="); i >= 0 {
		return arg[:i], arg[i+1:]
	}
	base := filepath.Base(arg)
	return strings.TrimSuffix(base, filepath.Ext(base)), arg
}

func init() {
	cogtif.InitGdal()
}

func main() {
	output := flag.String("output", "", "destination directory for the packaged dataset")
	product := flag.String("product", "", "product name")
	productHref := flag.String("product-href", "", "product definition URL")
	propertiesPath := flag.String("properties", "", "YAML file of dataset properties")
	ifExistsFlag := flag.String("if-exists", "error", "behaviour when the output already exists: skip or error")
	var sources sourceList
	flag.Var(&sources, "source", "source dataset metadata document (repeatable)")
	flag.Parse()

	if *output == "" {
		log.Fatal("Please provide an -output directory")
	}
	if flag.NArg() == 0 {
		log.Fatal("Please provide at least one band raster (name=path or path)")
	}

	var ifExists assembler.IfExists
	switch *ifExistsFlag {
	case "skip":
		ifExists = assembler.Skip
	case "error":
		ifExists = assembler.ThrowError
	default:
		log.Fatalf("Unknown -if-exists value: %s", *ifExistsFlag)
	}

	a, err := assembler.NewAssembler(*output, ifExists)
	ensure(err)
	defer a.Close()

	if *product != "" {
		a.SetProduct(*product, *productHref)
	}

	if *propertiesPath != "" {
		data, err := ioutil.ReadFile(*propertiesPath)
		ensure(err)
		props := map[string]interface{}{}
		ensure(yaml.Unmarshal(data, &props))
		ensure(a.Properties().SetAll(props))
	}

	for _, src := range sources {
		ensure(a.AddSourcePath(src, "", true))
	}

	for _, arg := range flag.Args() {
		name, path := bandName(arg)
		log.Printf("writing measurement %s from %s", name, path)
		ensure(a.WriteMeasurement(name, path))
	}

	res, err := a.Done()
	ensure(err)

	fmt.Printf("packaged %s at %s\n", res.ID, res.Path)
	for _, w := range res.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
}
