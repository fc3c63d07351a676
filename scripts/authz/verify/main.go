// Command verify checks the configured Casbin policy against a fixture of
// expected decisions. Run it after editing a policy file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/iota-uz/servicedesk/pkg/authz"
	"github.com/iota-uz/servicedesk/pkg/configuration"
)

type fixtureCase struct {
	Role   string `yaml:"role"`
	Object string `yaml:"object"`
	Action string `yaml:"action"`
	Allow  bool   `yaml:"allow"`
	Note   string `yaml:"note,omitempty"`
}

type mismatch struct {
	Subject string `json:"subject"`
	Object  string `json:"object"`
	Action  string `json:"action"`
	Want    bool   `json:"want"`
	Got     bool   `json:"got"`
	Note    string `json:"note,omitempty"`
}

type checker interface {
	Check(ctx context.Context, req authz.Request) (bool, error)
}

func main() {
	var (
		fixturesPath = flag.String("fixtures", "config/access/authz_fixtures.yaml", "YAML file of expected decisions")
		emitMetrics  = flag.Bool("emit-metrics", false, "Print parity metrics as JSON")
	)
	flag.Parse()

	fixtures, err := loadFixtures(*fixturesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load fixtures: %v\n", err)
		os.Exit(1)
	}

	svc, err := authz.NewService(authz.ConfigFrom(configuration.Use()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build authz service: %v\n", err)
		os.Exit(1)
	}

	mismatches, err := verify(context.Background(), svc, fixtures)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify failed: %v\n", err)
		os.Exit(1)
	}
	if *emitMetrics {
		if err := writeMetrics(os.Stdout, len(fixtures), mismatches); err != nil {
			fmt.Fprintf(os.Stderr, "failed to marshal metrics: %v\n", err)
			os.Exit(1)
		}
	}
	if len(mismatches) > 0 {
		for _, diff := range mismatches {
			fmt.Fprintf(os.Stderr, "mismatch: %+v\n", diff)
		}
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "policy ok: checked %d decisions\n", len(fixtures))
}

func loadFixtures(path string) ([]fixtureCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fixtures []fixtureCase
	if err := yaml.Unmarshal(data, &fixtures); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return fixtures, nil
}

func verify(ctx context.Context, svc checker, fixtures []fixtureCase) ([]mismatch, error) {
	var result []mismatch
	for _, fx := range fixtures {
		req := authz.NewRequest(authz.SubjectForRole(fx.Role), fx.Object, fx.Action)
		allowed, err := svc.Check(ctx, req)
		if err != nil {
			return nil, err
		}
		if allowed != fx.Allow {
			result = append(result, mismatch{
				Subject: req.Subject,
				Object:  req.Object,
				Action:  req.Action,
				Want:    fx.Allow,
				Got:     allowed,
				Note:    fx.Note,
			})
		}
	}
	return result, nil
}

func writeMetrics(w io.Writer, total int, mismatches []mismatch) error {
	payload, err := json.Marshal(map[string]any{
		"total_checked": total,
		"mismatches":    len(mismatches),
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", payload)
	return err
}
