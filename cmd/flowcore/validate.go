package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rendis/flowcore/internal/validation"
	"github.com/rendis/flowcore/pkg/schema"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a graph file without running it",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}
	cmd.Flags().String("format", "text", "Output format: text | json")
	cmd.Flags().Bool("strict", false, "Treat warnings as errors")
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	strict, _ := cmd.Flags().GetBool("strict")

	raw, err := readGraphFile(args[0])
	if err != nil {
		return fileError(args[0], err)
	}

	v, err := validation.NewGraphValidator(nil)
	if err != nil {
		return err
	}
	result := v.ValidateDocument(raw)
	if g, err := decodeGraph(raw); err != nil {
		result.AddError("/", schema.IssueDocumentSchema, err.Error())
	} else {
		result.Merge(v.Validate(g))
	}

	printValidation(cmd.OutOrStdout(), result, format)
	if !result.Valid() || (strict && len(result.Warnings) > 0) {
		return exitError(exitValidation, "validation failed")
	}
	return nil
}

func printValidation(w io.Writer, r *schema.ValidationResult, format string) {
	if format == "json" {
		writeJSON(w, map[string]any{
			"valid":    r.Valid(),
			"errors":   nonNilIssues(r.Errors),
			"warnings": nonNilIssues(r.Warnings),
		})
		return
	}

	for _, is := range r.Errors {
		printIssue(w, "ERROR", is)
	}
	for _, is := range r.Warnings {
		printIssue(w, "WARNING", is)
	}
	switch {
	case len(r.Errors) == 0 && len(r.Warnings) == 0:
		fmt.Fprintln(w, "Valid!")
	case len(r.Errors) == 0:
		fmt.Fprintf(w, "\nValid! (%d %s)\n", len(r.Warnings), pluralize("warning", len(r.Warnings)))
	default:
		fmt.Fprintf(w, "\n%d %s, %d %s\n",
			len(r.Errors), pluralize("error", len(r.Errors)),
			len(r.Warnings), pluralize("warning", len(r.Warnings)))
	}
}

func printIssue(w io.Writer, sev string, is schema.ValidationIssue) {
	if is.Path != "" {
		fmt.Fprintf(w, "%s [%s]: %s (at %s)\n", sev, is.Code, is.Message, is.Path)
		return
	}
	fmt.Fprintf(w, "%s [%s]: %s\n", sev, is.Code, is.Message)
}

func nonNilIssues(issues []schema.ValidationIssue) []schema.ValidationIssue {
	if issues == nil {
		return []schema.ValidationIssue{}
	}
	return issues
}

func writeJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fileError(path string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return exitError(exitFileNotFound, "file not found: %s", path)
	}
	return exitError(exitInputParse, "reading %s: %v", path, err)
}

func pluralize(word string, count int) string {
	if count == 1 {
		return word
	}
	return word + "s"
}
