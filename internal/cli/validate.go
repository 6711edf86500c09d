package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/scorebox/internal/suite"
)

// ValidationIssue is one suite definition problem.
type ValidationIssue struct {
	Field    string `json:"field"`
	Message  string `json:"message"`
	Position string `json:"position,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Suite  string            `json:"suite,omitempty"`
	Checks int               `json:"checks"`
	Issues []ValidationIssue `json:"issues,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <suite-dir>",
		Short: "Validate a check suite without running it",
		Long: `Compile every .cue suite file in the directory and report
definition errors without evaluating anything.

Exit codes:
  0 - Suite is valid
  1 - Suite has definition errors
  2 - Command error (directory not found, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, suiteDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	s, err := suite.LoadDir(suiteDir)
	if err != nil {
		var ce *suite.CompileError
		if errors.As(err, &ce) {
			issue := ValidationIssue{Field: ce.Field, Message: ce.Message}
			if ce.Pos.IsValid() {
				issue.Position = fmt.Sprintf("%s:%d:%d", ce.Pos.Filename(), ce.Pos.Line(), ce.Pos.Column())
			}
			if ferr := outputValidation(formatter, ValidationResult{Issues: []ValidationIssue{issue}}); ferr != nil {
				return ferr
			}
			return NewExitError(ExitFailure, "suite is invalid")
		}
		return WrapExitError(ExitCommandError, "failed to load suite", err)
	}

	return outputValidation(formatter, ValidationResult{
		Valid:  true,
		Suite:  s.Name,
		Checks: len(s.Checks),
	})
}

func outputValidation(f *OutputFormatter, result ValidationResult) error {
	if f.Format == "json" {
		return f.Success(result)
	}
	if result.Valid {
		fmt.Fprintf(f.Writer, "Suite is valid (%d checks)\n", result.Checks)
		return nil
	}
	for _, issue := range result.Issues {
		if issue.Position != "" {
			fmt.Fprintf(f.Writer, "%s: %s: %s\n", issue.Position, issue.Field, issue.Message)
		} else {
			fmt.Fprintf(f.Writer, "%s: %s\n", issue.Field, issue.Message)
		}
	}
	return nil
}
