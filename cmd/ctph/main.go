package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ctphash/ctph"
	"github.com/ctphash/ctph/match"
)

// cliContext carries the flags and logger a subcommand needs, replacing
// the teacher CLI's package-level globals so multiple invocations (e.g.
// from tests) don't share mutable state.
type cliContext struct {
	silent    bool
	matchFile string
	threshold int
	logger    *slog.Logger
}

func (c *cliContext) warnf(format string, args ...any) {
	if c.silent {
		return
	}
	c.logger.Warn(fmt.Sprintf(format, args...))
}

func newRootCmd() *cobra.Command {
	ctx := &cliContext{
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	}

	root := &cobra.Command{
		Use:                   "ctph [options] files...",
		Short:                 "ctph fuzzy hashing tool",
		Long:                  "ctph computes and matches context-triggered piecewise hashes.",
		DisableFlagsInUseLine: true,
	}
	root.PersistentFlags().BoolVarP(&ctx.silent, "silent", "s", false, "suppress error messages")

	root.AddCommand(newHashCmd(ctx), newMatchCmd(ctx), newClusterCmd(ctx))
	root.SetUsageTemplate(usageTemplate)
	return root
}

func newHashCmd(ctx *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "hash files...",
		Short: "compute the fuzzy hash of one or more files or directories",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			for _, arg := range args {
				walkAndHash(ctx, arg, hashAndPrint)
			}
		},
	}
}

func newMatchCmd(ctx *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match files...",
		Short: "match files against a signature file",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			entries, err := loadSignatureFile(ctx.matchFile)
			if err != nil {
				ctx.warnf("%s: %v", ctx.matchFile, err)
				os.Exit(1)
			}
			for _, arg := range args {
				walkAndHash(ctx, arg, func(ctx *cliContext, path string) {
					matchFileAgainstEntries(ctx, path, entries)
				})
			}
		},
	}
	cmd.Flags().StringVarP(&ctx.matchFile, "match", "m", "", "signature file to match against")
	cmd.MarkFlagRequired("match")
	return cmd
}

func newClusterCmd(ctx *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "group the entries of a signature file into similarity clusters",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			entries, err := loadSignatureFile(ctx.matchFile)
			if err != nil {
				ctx.warnf("%s: %v", ctx.matchFile, err)
				os.Exit(1)
			}

			idx := match.NewIndex()
			for _, e := range entries {
				idx.Add(match.Filedata{Filename: e.Filename, Signature: e.Signature})
			}

			for i, cluster := range idx.BuildClusters(ctx.threshold) {
				fmt.Printf("cluster %d:\n", i+1)
				for _, entryIdx := range cluster {
					fmt.Printf("  %s\n", idx.At(entryIdx).Filename)
				}
			}
		},
	}
	cmd.Flags().StringVarP(&ctx.matchFile, "match", "m", "", "signature file to cluster")
	cmd.Flags().IntVarP(&ctx.threshold, "threshold", "t", 1, "minimum score to join two files into one cluster")
	cmd.MarkFlagRequired("match")
	return cmd
}

func walkAndHash(ctx *cliContext, root string, visit func(*cliContext, string)) {
	info, err := os.Stat(root)
	if err != nil {
		ctx.warnf("%s: %v", root, err)
		return
	}
	if !info.IsDir() {
		visit(ctx, root)
		return
	}
	err = filepath.Walk(root, func(p string, i os.FileInfo, walkErr error) error {
		if walkErr != nil {
			ctx.warnf("%s: %v", p, walkErr)
			return nil
		}
		if !i.IsDir() {
			visit(ctx, p)
		}
		return nil
	})
	if err != nil {
		ctx.warnf("%s: %v", root, err)
	}
}

func hashAndPrint(ctx *cliContext, path string) {
	hash, err := ctph.File(path)
	if err != nil {
		ctx.warnf("%s: %v", path, err)
		return
	}
	fmt.Printf("%s,\"%s\"\n", hash, path)
}

func loadSignatureFile(path string) ([]ctph.SignatureEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ctph.ReadSignatureFile(f)
}

func matchFileAgainstEntries(ctx *cliContext, path string, entries []ctph.SignatureEntry) {
	hash, err := ctph.File(path)
	if err != nil {
		ctx.warnf("%s: %v", path, err)
		return
	}
	for _, e := range entries {
		if score := ctph.Compare(hash, e.Signature); score > 0 {
			fmt.Printf("%s matches %s (%d)\n", path, e.Filename, score)
		}
	}
}

const usageTemplate = `Usage: {{if .Runnable}}{{.UseLine}}{{end}} {{if gt (len .Aliases) 0}}

Aliases:
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}

Commands:{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

Options:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Options:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasHelpSubCommands}}

Additional help topics:{{range .Commands}}{{if .IsAdditionalHelpTopicCommand}}
  {{rpad .CommandPath .CommandPathPadding}} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableSubCommands}}

Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
