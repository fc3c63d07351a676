// Command cleanarchguard checks that module packages only import inward:
// presentation and infrastructure may use services and domain, services may
// use domain, and domain imports no other layer.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/roblaszczak/go-cleanarch/cleanarch"
)

func main() {
	var (
		configPath = flag.String("config", ".gocleanarch.yml", "path to the layer configuration")
		debug      = flag.Bool("debug", false, "print go-cleanarch debug output")
	)
	flag.Parse()

	violations, err := run(*configPath, *debug)
	if err != nil {
		log.Fatalf("cleanarchguard: %v", err)
	}
	if len(violations) > 0 {
		for _, v := range violations {
			log.Println(v.Error())
		}
		log.Printf("cleanarchguard: %d layer violation(s)", len(violations))
		os.Exit(1)
	}
	log.Println("cleanarchguard: layers ok")
}

func run(configPath string, debug bool) ([]cleanarch.ValidationError, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	root, err := cfg.resolveRoot()
	if err != nil {
		return nil, err
	}
	if debug {
		cleanarch.Log.SetOutput(os.Stderr)
	}

	validator := cleanarch.NewValidator(cfg.layerAliases())
	ok, errs, err := validator.Validate(root, cfg.IgnoreTests, cfg.IgnorePackages)
	if err != nil {
		return nil, fmt.Errorf("go-cleanarch: %w", err)
	}
	if ok {
		return nil, nil
	}
	return cfg.filter(errs), nil
}
