// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package contracts implements the flowtrace contracts command family.
package contracts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flowtrace/flowtrace/internal/commands/shared"
	"github.com/flowtrace/flowtrace/internal/config"
	"github.com/flowtrace/flowtrace/pkg/contracts"
	"github.com/flowtrace/flowtrace/pkg/errors"
)

// NewCommand creates the contracts command with its subcommands
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contracts",
		Short: "Infer, validate, and manage data contracts",
		Long: `Manage data contracts: infer expectations from sample data, validate
data against stored contracts, and browse the versioned contract registry.`,
	}

	cmd.PersistentFlags().String("registry-dir", "", "Contract registry directory (default: $FLOWTRACE_CONTRACTS_DIR or .flowtrace/contracts)")

	cmd.AddCommand(newInferCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newCompareCommand())
	cmd.AddCommand(newDeleteCommand())

	return cmd
}

func openRegistry(cmd *cobra.Command) (*contracts.Registry, error) {
	dir, _ := cmd.Flags().GetString("registry-dir")
	if dir == "" {
		dir = config.FromEnv().ContractsDir
	}
	return contracts.NewRegistry(dir)
}

func newInferCommand() *cobra.Command {
	var (
		csvPath string
		suite   string
		mode    string
		output  string
		save    bool
	)

	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Infer a contract from sample data",
		RunE: func(cmd *cobra.Command, args []string) error {
			if csvPath == "" {
				return shared.NewFailureError("missing input", &errors.ValidationError{Field: "csv", Message: "a --csv file is required"})
			}
			table, err := contracts.LoadCSV(csvPath)
			if err != nil {
				return shared.NewFailureError(fmt.Sprintf("reading %s", csvPath), err)
			}

			contract := contracts.Infer(table, suite, contracts.Mode(mode))

			if save {
				reg, err := openRegistry(cmd)
				if err != nil {
					return shared.NewFailureError("opening registry", err)
				}
				version, err := reg.Save(suite, contract, "")
				if err != nil {
					return shared.NewFailureError("saving contract", err)
				}
				if !shared.GetQuiet() {
					cmd.Printf("Saved %s version %s (%d expectations)\n", suite, version, len(contract.Expectations))
				}
			}

			if output != "" {
				if err := contracts.WriteFile(output, contract); err != nil {
					return shared.NewFailureError("writing contract", err)
				}
				if !shared.GetQuiet() {
					cmd.Printf("Contract written to %s\n", output)
				}
				return nil
			}
			if save {
				return nil
			}
			return printContract(cmd, contract, "summary")
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "CSV file to analyze")
	cmd.Flags().StringVar(&suite, "suite-name", "", "Name for the contract suite")
	cmd.Flags().StringVar(&mode, "mode", "loose", "Inference mode: loose|strict")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file for the contract (.json or .yaml)")
	cmd.Flags().BoolVar(&save, "save", false, "Save to the contract registry")
	_ = cmd.MarkFlagRequired("suite-name")

	return cmd
}

func newValidateCommand() *cobra.Command {
	var (
		csvPath     string
		contract    string
		version     string
		failOnError bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate data against a contract",
		RunE: func(cmd *cobra.Command, args []string) error {
			if csvPath == "" {
				return shared.NewFailureError("missing input", &errors.ValidationError{Field: "csv", Message: "a --csv file is required"})
			}
			table, err := contracts.LoadCSV(csvPath)
			if err != nil {
				return shared.NewFailureError(fmt.Sprintf("reading %s", csvPath), err)
			}

			c, err := resolveContract(cmd, contract, version)
			if err != nil {
				return shared.NewFailureError("loading contract", err)
			}

			result := contracts.Validate(table, c)

			if shared.GetJSON() {
				data, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return shared.NewFailureError("encoding result", err)
				}
				cmd.Println(string(data))
			} else {
				cmd.Printf("Suite:  %s\n", result.SuiteName)
				cmd.Printf("Status: %s\n", result.Status)
				for k, v := range result.Statistics {
					cmd.Printf("  %s: %v\n", k, v)
				}
				for _, f := range result.Failures {
					cmd.Printf("  FAIL %s\n", f)
				}
			}

			if failOnError && result.Status == contracts.StatusFailed {
				return shared.NewFailureError("contract validation failed", nil)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "CSV file to validate")
	cmd.Flags().StringVar(&contract, "contract", "", "Contract file path, or suite name in the registry")
	cmd.Flags().StringVar(&version, "version", "", "Contract version (registry only, default: latest)")
	cmd.Flags().BoolVar(&failOnError, "fail-on-error", false, "Exit non-zero when validation fails")
	_ = cmd.MarkFlagRequired("contract")

	return cmd
}

// resolveContract treats names with a path separator or contract file
// extension as files; everything else is a registry suite name.
func resolveContract(cmd *cobra.Command, ref, version string) (*contracts.Contract, error) {
	if strings.ContainsAny(ref, "/\\") || strings.HasSuffix(ref, ".json") || strings.HasSuffix(ref, ".yaml") || strings.HasSuffix(ref, ".yml") {
		return contracts.ReadFile(ref)
	}
	reg, err := openRegistry(cmd)
	if err != nil {
		return nil, err
	}
	return reg.Load(ref, version)
}

func newListCommand() *cobra.Command {
	var detailed bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List contract suites in the registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry(cmd)
			if err != nil {
				return shared.NewFailureError("opening registry", err)
			}

			suites := reg.List()
			if shared.GetJSON() {
				data, err := json.MarshalIndent(suites, "", "  ")
				if err != nil {
					return shared.NewFailureError("encoding suites", err)
				}
				cmd.Println(string(data))
				return nil
			}
			if len(suites) == 0 {
				cmd.Println("No contract suites found")
				return nil
			}
			for _, suite := range suites {
				if !detailed {
					cmd.Println(suite)
					continue
				}
				info, err := reg.Info(suite)
				if err != nil {
					continue
				}
				cmd.Printf("%s (latest: %s, versions: %d)\n", suite, info.Latest, len(info.Versions))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&detailed, "detailed", false, "Show version details")
	return cmd
}

func newShowCommand() *cobra.Command {
	var (
		version string
		format  string
	)

	cmd := &cobra.Command{
		Use:   "show <suite-name>",
		Short: "Show a stored contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry(cmd)
			if err != nil {
				return shared.NewFailureError("opening registry", err)
			}
			c, err := reg.Load(args[0], version)
			if err != nil {
				return shared.NewFailureError("loading contract", err)
			}
			return printContract(cmd, c, format)
		},
	}

	cmd.Flags().StringVar(&version, "version", "", "Specific version to show (default: latest)")
	cmd.Flags().StringVar(&format, "format", "summary", "Output format: json|summary")
	return cmd
}

func printContract(cmd *cobra.Command, c *contracts.Contract, format string) error {
	if format == "json" || shared.GetJSON() {
		data, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return shared.NewFailureError("encoding contract", err)
		}
		cmd.Println(string(data))
		return nil
	}
	cmd.Print(contracts.Summary(c))
	return nil
}

func newCompareCommand() *cobra.Command {
	var v1, v2 string

	cmd := &cobra.Command{
		Use:   "compare <suite-name>",
		Short: "Compare two versions of a contract suite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry(cmd)
			if err != nil {
				return shared.NewFailureError("opening registry", err)
			}
			cmp, err := reg.Compare(args[0], v1, v2)
			if err != nil {
				return shared.NewFailureError("comparing versions", err)
			}

			if shared.GetJSON() {
				data, err := json.MarshalIndent(cmp, "", "  ")
				if err != nil {
					return shared.NewFailureError("encoding comparison", err)
				}
				cmd.Println(string(data))
				return nil
			}

			cmd.Printf("%s: v%s (%d expectations) vs v%s (%d expectations)\n",
				args[0], cmp.Version1, cmp.CountV1, cmp.Version2, cmp.CountV2)
			if len(cmp.AddedTypes) > 0 {
				cmd.Printf("  added:   %s\n", strings.Join(cmp.AddedTypes, ", "))
			}
			if len(cmp.RemovedTypes) > 0 {
				cmd.Printf("  removed: %s\n", strings.Join(cmp.RemovedTypes, ", "))
			}
			if cmp.BreakingChanges {
				cmd.Println("  breaking changes detected")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&v1, "version1", "", "First version")
	cmd.Flags().StringVar(&v2, "version2", "", "Second version")
	_ = cmd.MarkFlagRequired("version1")
	_ = cmd.MarkFlagRequired("version2")
	return cmd
}

func newDeleteCommand() *cobra.Command {
	var version string

	cmd := &cobra.Command{
		Use:   "delete <suite-name>",
		Short: "Delete a contract suite or version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry(cmd)
			if err != nil {
				return shared.NewFailureError("opening registry", err)
			}
			if err := reg.Delete(args[0], version); err != nil {
				return shared.NewFailureError("deleting contract", err)
			}
			if !shared.GetQuiet() {
				if version == "" {
					cmd.Printf("Deleted suite %s\n", args[0])
				} else {
					cmd.Printf("Deleted %s version %s\n", args[0], version)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&version, "version", "", "Specific version to delete (default: whole suite)")
	return cmd
}
