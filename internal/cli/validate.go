package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/flowtree/internal/harness"
)

// ValidationError describes one invalid scenario file.
type ValidationError struct {
	File    string `json:"file"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Files  int               `json:"files"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file-or-dir>...",
		Short: "Validate scenario files without running them",
		Long: `Validate scenario files (YAML or CUE) without running them.

Checks syntax, unknown fields, required fields, registered flow names and
assertion parameters. Directories are searched for scenario files.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	files, err := expandScenarioPaths(paths)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	result := ValidationResult{Files: len(files)}
	for _, file := range files {
		formatter.VerboseLog("Validating %s", file)
		if _, err := harness.LoadScenario(file); err != nil {
			result.Errors = append(result.Errors, toValidationError(file, err))
		}
	}
	result.Valid = len(result.Errors) == 0

	if opts.Format == "json" {
		response := CLIResponse{Status: "ok", Data: result}
		if !result.Valid {
			response.Status = "error"
			response.Error = &CLIError{
				Code:    ErrCodeInvalid,
				Message: fmt.Sprintf("%d invalid scenario file(s)", len(result.Errors)),
			}
		}
		if err := formatter.JSON(response); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, e := range result.Errors {
			if e.Line > 0 {
				fmt.Fprintf(w, "✗ %s:%d:%d: %s\n", e.File, e.Line, e.Column, e.Message)
			} else {
				fmt.Fprintf(w, "✗ %s: %s\n", e.File, e.Message)
			}
		}
		if result.Valid {
			fmt.Fprintf(w, "✓ %d scenario file(s) valid\n", result.Files)
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%d invalid scenario file(s)", len(result.Errors)))
	}
	return nil
}

// expandScenarioPaths replaces directories by the scenario files they
// contain. Files named explicitly are kept whatever their extension.
func expandScenarioPaths(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("path not found: %s", p)
		}
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		found, err := findScenarioFiles(p, "")
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return files, nil
}

func toValidationError(file string, err error) ValidationError {
	ve := ValidationError{File: file, Message: err.Error()}

	var le *harness.LoadError
	if errors.As(err, &le) {
		ve.Message = le.Message
		if le.Field != "" {
			ve.Message = le.Field + ": " + le.Message
		}
		if le.Pos.IsValid() {
			ve.Line = le.Pos.Line()
			ve.Column = le.Pos.Column()
		}
	}
	return ve
}
