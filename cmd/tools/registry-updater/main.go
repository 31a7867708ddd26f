package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"credit-risk-engine/internal/model/artifact"
	"credit-risk-engine/pkg/registry"
)

func main() {
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	promoteCmd := flag.NewFlagSet("promote", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	listPath := listCmd.String("path", "models/registry.json", "Path to registry file")

	promotePath := promoteCmd.String("path", "models/registry.json", "Path to registry file")
	version := promoteCmd.String("version", "", "Model version to serve")
	skipVerify := promoteCmd.Bool("skip-verify", false, "Promote without loading the artifact")

	validatePath := validateCmd.String("path", "models/registry.json", "Path to registry file")
	verifyArtifacts := validateCmd.Bool("artifacts", false, "Also load and verify every artifact file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "list":
		listCmd.Parse(os.Args[2:])
		err = listModels(*listPath)

	case "promote":
		promoteCmd.Parse(os.Args[2:])
		if *version == "" {
			fmt.Println("Error: version is required for promote.")
			promoteCmd.Usage()
			os.Exit(1)
		}
		err = promoteModel(*promotePath, *version, !*skipVerify)
		if err == nil {
			fmt.Printf("Promoted model %s\n", *version)
		}

	case "validate":
		validateCmd.Parse(os.Args[2:])
		err = validateRegistry(*validatePath, *verifyArtifacts)

	case "help":
		help()
		return

	default:
		help()
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func listModels(path string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tSTATUS\tACCURACY\tCREATED\tPATH")
	for _, m := range reg.Models {
		fmt.Fprintf(w, "%s\t%s\t%.4f\t%s\t%s\n", m.Version, m.Status, m.Accuracy, m.CreatedAt, m.Path)
	}
	return w.Flush()
}

func promoteModel(path, version string, verify bool) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	if verify {
		m, ok := reg.Find(version)
		if !ok {
			return fmt.Errorf("model version %s not found", version)
		}
		if err := verifyArtifact(m); err != nil {
			return err
		}
	}

	if err := reg.Promote(version); err != nil {
		return err
	}
	return reg.Save(path)
}

func validateRegistry(path string, artifacts bool) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return err
	}

	if artifacts {
		for i := range reg.Models {
			if err := verifyArtifact(&reg.Models[i]); err != nil {
				return err
			}
		}
	}

	fmt.Printf("Registry validation passed. Found %d models.\n", len(reg.Models))
	return nil
}

// verifyArtifact loads the file and checks it is the one registered.
func verifyArtifact(m *registry.Model) error {
	a, err := artifact.Load(m.Path)
	if err != nil {
		return fmt.Errorf("model %s: %w", m.Version, err)
	}
	if m.Checksum != "" && a.Checksum != m.Checksum {
		return fmt.Errorf("model %s: artifact checksum %s does not match registry %s", m.Version, a.Checksum, m.Checksum)
	}
	if a.ModelVersion != m.Version {
		return fmt.Errorf("model %s: artifact reports version %s", m.Version, a.ModelVersion)
	}
	return nil
}

func help() {
	printHelp(os.Stdout)
}

func printHelp(w io.Writer) {
	fmt.Fprint(w, `
Usage: registry-updater <command> [flags]

Commands:
  list      List registered models
  promote   Mark a model version as the served model
  validate  Validate the registry file
  help      Show this help message

Examples:
  registry-updater list -path models/registry.json
  registry-updater promote -path models/registry.json -version gbdt-20260101T120000Z
  registry-updater validate -path models/registry.json -artifacts

Use 'registry-updater <command> -h' for more information about a command.
`)
}
