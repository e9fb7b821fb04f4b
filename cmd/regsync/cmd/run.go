package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/aweris/regsync"
	"github.com/aweris/regsync/internal/compression"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.Flags().StringP("input", "i", "-", "input records file, zstd or plain (default: stdin)")
	rootCmd.Flags().StringP("output", "o", "-", "output records file (default: stdout)")
	rootCmd.Flags().Bool("compress-output", false, "zstd compress the output records")
}

func runSync(cmd *cobra.Command, args []string) (err error) {
	inputPath, _ := cmd.Flags().GetString("input")
	outputPath, _ := cmd.Flags().GetString("output")
	compress, _ := cmd.Flags().GetBool("compress-output")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	backend := newBackend(cfg)
	if err := regsync.Login(cmd.Context(), backend, cfg); err != nil {
		return err
	}

	in, err := compression.OpenReader(inputPath, os.Stdin)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	out, err := compression.CreateWriter(outputPath, os.Stdout, compress)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
	}()

	stats, err := regsync.NewProcessor(backend).Run(cmd.Context(), in, out)

	log := logrus.WithFields(logrus.Fields{
		"processed": stats.Processed,
		"succeeded": stats.Succeeded,
		"failed":    stats.Failed,
	})
	if err != nil {
		if errors.Is(err, regsync.ErrProtocol) {
			log.Error("Input stream is malformed, stopping")
		}
		return err
	}

	log.Info("Done")
	return nil
}
