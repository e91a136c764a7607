package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/metalagman/devflow/internal/tools"
	"github.com/spf13/cobra"
)

func toolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tool",
		Short: "Invoke an agent tool directly against the project",
	}
	cmd.AddCommand(
		toolReadCmd(),
		toolWriteCmd(),
		toolListCmd(),
		toolRunCmd(),
		toolGitFilesCmd(),
		toolOnboardCmd(),
	)
	return cmd
}

func withEnv(fn func(cmd *cobra.Command, env *tools.Env, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		root, err := repoRoot()
		if err != nil {
			return err
		}
		env, err := newToolEnv(root)
		if err != nil {
			return err
		}
		return fn(cmd, env, args)
	}
}

func toolReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <path>",
		Short: "Read a file under the project root",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, env *tools.Env, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), env.ReadFile(tools.PathArgs{Path: args[0]}).Result)
			return nil
		}),
	}
}

func toolWriteCmd() *cobra.Command {
	var content string
	cmd := &cobra.Command{
		Use:   "write <path>",
		Short: "Write a file under the project root (content from --content or stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, env *tools.Env, args []string) error {
			if !cmd.Flags().Changed("content") {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				content = string(data)
			}
			fmt.Fprintln(cmd.OutOrStdout(), env.WriteFile(tools.WriteFileArgs{Path: args[0], Content: content}).Result)
			return nil
		}),
	}
	cmd.Flags().StringVar(&content, "content", "", "file content")
	return cmd
}

func toolListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [path]",
		Short: "List files and directories below a path",
		Args:  cobra.MaximumNArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, env *tools.Env, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			printLines(cmd.OutOrStdout(), env.ListDirectory(tools.PathArgs{Path: path}).Result)
			return nil
		}),
	}
}

func toolRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <command>",
		Short: "Run a shell command from the project root",
		Args:  cobra.MinimumNArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, env *tools.Env, args []string) error {
			res := env.RunShellCommand(cmd.Context(), tools.CommandArgs{Command: strings.Join(args, " ")})
			fmt.Fprint(cmd.OutOrStdout(), res.Result)
			return nil
		}),
	}
}

func toolGitFilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "git-files",
		Short: "List files tracked by git",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, env *tools.Env, _ []string) error {
			printLines(cmd.OutOrStdout(), env.ListGitFiles().Result)
			return nil
		}),
	}
}

func toolOnboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "Print the project summary handed to agents",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, env *tools.Env, _ []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(env.OnboardProject(cmd.Context()))
		}),
	}
}

func printLines(w io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}
