package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/INLOpen/primetree/compressors"
	"github.com/INLOpen/primetree/config"
	"github.com/INLOpen/primetree/core"
	"github.com/INLOpen/primetree/jobs"
	"github.com/INLOpen/primetree/merge"
	"github.com/INLOpen/primetree/stats"
	"github.com/INLOpen/primetree/tree"
)

func parseRoot(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("root %q is not a decimal value", s)
	}
	return v, nil
}

func newGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a truncatable prime tree and write its binary stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, closer, err := createLogger(cfg.Logging)
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer.Close()
			}

			disc, err := core.ParseDiscipline(cfg.Pipeline.PrimeType)
			if err != nil {
				return err
			}
			root, err := parseRoot(cfg.Pipeline.Root)
			if err != nil {
				return err
			}
			res, err := tree.Generate(tree.GenerateOptions{
				Base:       cfg.Pipeline.Base,
				Discipline: disc,
				Root:       root,
				MaxLength:  int(cfg.Pipeline.MaxLength),
				Logger:     logger,
			})
			if err != nil {
				return err
			}

			out, _ := cmd.Flags().GetString("out")
			if err := os.WriteFile(out, res.Stream, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			logger.Info("tree generated", "file", out,
				"bytes", len(res.Stream), "nodes", res.Root.CountNodes(),
				"oracle_queries", res.OracleQueries)
			fmt.Fprintf(cmd.OutOrStdout(), "hash = %d\nxxhash = %d\n", res.Hash, res.Digest)
			return nil
		},
	}
	pipelineFlags(cmd)
	cmd.Flags().String("root", "0", "recursion root as decimal text, 0 for the full tree")
	cmd.Flags().Uint32("max-length", core.UnlimitedLength, "largest digit count to explore")
	cmd.Flags().String("out", "tree.bin", "output file for the binary stream")
	return cmd
}

func newDecodeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode a binary tree stream into one prime per line",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			disc, err := core.ParseDiscipline(cfg.Pipeline.PrimeType)
			if err != nil {
				return err
			}
			root, err := parseRoot(cfg.Pipeline.Root)
			if err != nil {
				return err
			}
			outputBase, _ := cmd.Flags().GetInt("output-base")
			if outputBase < 2 || outputBase > 62 {
				return fmt.Errorf("output base %d out of range [2, 62]", outputBase)
			}

			in, _ := cmd.Flags().GetString("in")
			data, err := readTreeFile(in)
			if err != nil {
				return err
			}

			withLengths, _ := cmd.Flags().GetBool("lengths")
			it, err := tree.NewPreOrder(bytes.NewReader(data), disc, cfg.Pipeline.Base, root)
			if err != nil {
				return err
			}
			w := bufio.NewWriter(cmd.OutOrStdout())
			for it.Next() {
				length, value := it.At()
				if length == 0 {
					continue
				}
				if withLengths {
					fmt.Fprintf(w, "%d %s\n", length, value.Text(outputBase))
				} else {
					fmt.Fprintln(w, value.Text(outputBase))
				}
			}
			if err := it.Error(); err != nil {
				return err
			}
			return w.Flush()
		},
	}
	pipelineFlags(cmd)
	cmd.Flags().String("root", "0", "value the stream was generated from")
	cmd.Flags().String("in", "tree.bin", "binary stream to decode")
	cmd.Flags().Int("output-base", 10, "base to print values in, 2 to 62")
	cmd.Flags().Bool("lengths", false, "prefix each value with its digit count")
	return cmd
}

// readTreeFile loads a stream, decompressing by file suffix.
func readTreeFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var ct core.CompressionType
	switch {
	case strings.HasSuffix(path, ".sz"):
		ct = core.CompressionSnappy
	case strings.HasSuffix(path, ".lz4"):
		ct = core.CompressionLZ4
	case strings.HasSuffix(path, ".zst"):
		ct = core.CompressionZSTD
	default:
		return raw, nil
	}
	c, err := compressors.New(ct)
	if err != nil {
		return nil, err
	}
	rc, err := c.Decompress(raw)
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", path, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func newMergeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Splice job partitions into the root tree stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, closer, err := createLogger(cfg.Logging)
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer.Close()
			}
			disc, err := core.ParseDiscipline(cfg.Pipeline.PrimeType)
			if err != nil {
				return err
			}
			root, err := parseRoot(cfg.Pipeline.Root)
			if err != nil {
				return err
			}

			store, err := jobs.NewStore(cfg.Pipeline.DataDir, nil, logger)
			if err != nil {
				return err
			}
			rootStream, err := store.ReadRootTree()
			if err != nil {
				return err
			}
			res, err := merge.Merge(rootStream, merge.Options{
				Base:       cfg.Pipeline.Base,
				Discipline: disc,
				Root:       root,
				Partitions: store,
				Logger:     logger,
			})
			if err != nil {
				return err
			}
			if err := store.WriteMergedTree(res.Data); err != nil {
				return err
			}
			logger.Info("merge complete", "bytes", len(res.Data),
				"unused_partitions", len(res.Unused))
			fmt.Fprintf(cmd.OutOrStdout(), "xxhash = %d\n", res.Digest)
			return nil
		},
	}
	pipelineFlags(cmd)
	cmd.Flags().String("root", "0", "value the root stream was generated from")
	return cmd
}

func newCombineCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "combine",
		Short: "Aggregate job statistics and verify the whole-tree hash",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, closer, err := createLogger(cfg.Logging)
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer.Close()
			}

			store, err := jobs.NewStore(cfg.Pipeline.DataDir, nil, logger)
			if err != nil {
				return err
			}
			combined, err := combineStats(cmd, cfg, store, logger)
			if err != nil {
				return err
			}

			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				return stats.Write(cmd.OutOrStdout(), combined)
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("creating %s: %w", out, err)
			}
			defer f.Close()
			if err := stats.Write(f, combined); err != nil {
				return err
			}
			return f.Close()
		},
	}
	pipelineFlags(cmd)
	cmd.Flags().Int("split-length", 4, "digit length the search space was split at")
	cmd.Flags().String("expected-hash", "", "fail unless the recomputed hash equals this value")
	cmd.Flags().String("out", "", "write the combined table here instead of stdout")
	return cmd
}

func combineStats(cmd *cobra.Command, cfg *config.Config, store *jobs.Store, logger *slog.Logger) (*stats.Table, error) {
	rootTable, err := store.ReadStats("")
	if err != nil {
		return nil, err
	}
	manifest, err := store.ReadManifest()
	if err != nil {
		return nil, err
	}
	jobTables, err := store.JobTables(manifest)
	if err != nil {
		return nil, err
	}

	var expected *uint64
	if s, _ := cmd.Flags().GetString("expected-hash"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad expected hash %q: %w", s, err)
		}
		expected = &v
	}

	return stats.Combine(stats.CombineOptions{
		Root:         rootTable,
		Jobs:         jobTables,
		SplitLength:  cfg.Pipeline.SplitLength,
		ExpectedHash: expected,
		Logger:       logger,
	})
}

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the whole pipeline locally: root pass, jobs, merge, stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, closer, err := createLogger(cfg.Logging)
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer.Close()
			}
			disc, err := core.ParseDiscipline(cfg.Pipeline.PrimeType)
			if err != nil {
				return err
			}
			ct, err := core.ParseCompressionType(cfg.Pipeline.Compression)
			if err != nil {
				return err
			}
			compressor, err := compressors.New(ct)
			if err != nil {
				return err
			}
			store, err := jobs.NewStore(cfg.Pipeline.DataDir, compressor, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runner := &jobs.Runner{
				Base:        cfg.Pipeline.Base,
				Discipline:  disc,
				MaxLength:   int(cfg.Pipeline.MaxLength),
				SplitLength: cfg.Pipeline.SplitLength,
				Workers:     cfg.Pipeline.Workers,
				Store:       store,
				Logger:      logger,
			}
			frontier, err := runner.Run(ctx)
			if err != nil {
				return err
			}
			logger.Info("all jobs complete", "jobs", len(frontier))

			rootStream, err := store.ReadRootTree()
			if err != nil {
				return err
			}
			merged, err := merge.Merge(rootStream, merge.Options{
				Base:       cfg.Pipeline.Base,
				Discipline: disc,
				Partitions: store,
				Logger:     logger,
			})
			if err != nil {
				return err
			}
			if err := store.WriteMergedTree(merged.Data); err != nil {
				return err
			}

			combined, err := combineStats(cmd, cfg, store, logger)
			if err != nil {
				return err
			}
			statsPath := filepath.Join(cfg.Pipeline.DataDir, "stats.csv")
			f, err := os.Create(statsPath)
			if err != nil {
				return fmt.Errorf("creating %s: %w", statsPath, err)
			}
			defer f.Close()
			if err := stats.Write(f, combined); err != nil {
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			logger.Info("pipeline complete", "tree_bytes", len(merged.Data),
				"tree_xxhash", merged.Digest, "hash", combined.Hash, "stats", statsPath)
			fmt.Fprintf(cmd.OutOrStdout(), "hash = %d\n", combined.Hash)
			return nil
		},
	}
	pipelineFlags(cmd)
	cmd.Flags().Uint32("max-length", 8, "largest digit count to explore")
	cmd.Flags().Int("split-length", 4, "digit length to split the search at")
	cmd.Flags().String("compression", "none", "partition compression: none, snappy, lz4, zstd")
	cmd.Flags().Int("workers", 0, "concurrent jobs, 0 for the config value")
	cmd.Flags().String("expected-hash", "", "fail unless the recomputed hash equals this value")
	return cmd
}
