package main

import (
	"fmt"

	"github.com/bitrise-io/go-utils/v2/fileutil"
	"github.com/bitrise-steplib/steps-testplanner/resourcemap"
	"github.com/spf13/cobra"
)

func init() {
	flags := resolveCmd.Flags()
	flags.StringVarP(&resolveCmd.rules, "resource-map", "m", "", "YAML resource map")
	flags.StringVar(&resolveCmd.query.Testplan, "testplan", "", "Testplan name")
	flags.StringVar(&resolveCmd.query.TestplanFile, "testplan-file", "", "Testplan file, relative to the repo top")
	flags.StringVar(&resolveCmd.query.Testpoint, "testpoint", "", "Testpoint name")
	flags.StringVar(&resolveCmd.query.Test, "test", "", "Test name")
	flags.StringToStringVar(&resolveCmd.query.Custom, "var", nil, "Custom template variable (key=value)")
	resolveCmd.MarkFlagRequired("resource-map")
	resolveCmd.MarkFlagRequired("testplan")
	resolveCmd.RunE = runResolve
	rootCmd.AddCommand(&resolveCmd.Command)
}

var resolveCmd = struct {
	cobra.Command
	rules string
	query resourcemap.Query
}{
	Command: cobra.Command{
		Use:          "resolve [flags] <resource>",
		Short:        "Look up a resource of a testplan, testpoint or test in the resource map",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
	},
}

func runResolve(cmd *cobra.Command, args []string) error {
	m, err := resourcemap.Load(resolveCmd.rules, fileutil.NewFileManager())
	if err != nil {
		return err
	}

	query := resolveCmd.query
	query.Resource = args[0]

	value, ok := m.Resolve(query)
	if !ok {
		return fmt.Errorf("resource %s not found for %s", query.Resource, describeQuery(query))
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func describeQuery(q resourcemap.Query) string {
	s := q.Testplan
	if q.Testpoint != "" {
		s += "/" + q.Testpoint
	}
	if q.Test != "" {
		s += "/" + q.Test
	}
	return s
}
