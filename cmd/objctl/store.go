package main

import (
	"fmt"
	"io"
	"os"

	"github.com/agenthands/objstore/pkg/cidutil"
	"github.com/agenthands/objstore/pkg/object"
	"github.com/agenthands/objstore/pkg/objstore"
	"github.com/agenthands/objstore/pkg/placement"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// openStore loads the configuration and opens the repository it names.
func openStore(cmd *cobra.Command, v *viper.Viper) (objstore.Store, error) {
	path, _ := cmd.Flags().GetString(flagConfig)
	cfg, err := readConfig(v, path)
	if err != nil {
		return nil, err
	}
	if cfg.Dir == "" {
		return nil, errNoDir
	}
	return objstore.Open(cmd.Context(), cfg)
}

// closeStore closes s, reporting its error through err unless err already
// holds one. The active pack is finalized on close, so a failure there means
// the last write is not durable.
func closeStore(s io.Closer, err *error) {
	if cerr := s.Close(); *err == nil && cerr != nil {
		*err = fmt.Errorf("close store: %w", cerr)
	}
}

func newPlaceCmd(v *viper.Viper) *cobra.Command {
	var f idFlags
	cmd := &cobra.Command{
		Use:   "place",
		Short: "List the nodes an identifier is placed on",
		Long: `List the configured placement nodes responsible for an identifier,
highest ranked first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString(flagConfig)
			cfg, err := readConfig(v, path)
			if err != nil {
				return err
			}
			p, err := placement.New(cfg.Placement)
			if err != nil {
				return err
			}
			id, err := f.id()
			if err != nil {
				return err
			}
			for _, n := range p.Replicate(id) {
				cmd.Println(n.Addr)
			}
			return nil
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func newPutCmd(v *viper.Viper) *cobra.Command {
	var (
		fileID uint64
		rev    uint64
	)
	cmd := &cobra.Command{
		Use:   "put [path]",
		Short: "Store a file as a new revision",
		Long:  `Store a file as a new revision. The file is read from stdin when path is "-" or omitted.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			s, err := openStore(cmd, v)
			if err != nil {
				return err
			}
			defer closeStore(s, &err)

			info, err := s.PutFile(cmd.Context(), fileID, in, objstore.PutOptions{Revision: rev})
			if err != nil {
				return err
			}
			printFileInfo(cmd, info)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&fileID, flagFileID, 0, "File identifier (0x prefix for hex)")
	cmd.Flags().Uint64Var(&rev, flagRevision, 0, "Revision to store, 0 picks one from the clock")
	_ = cmd.MarkFlagRequired(flagFileID)
	return cmd
}

func printFileInfo(cmd *cobra.Command, info objstore.FileInfo) {
	cmd.Printf("file:     %#x\n", info.FileID)
	cmd.Printf("revision: %d\n", info.Revision)
	cmd.Printf("length:   %d\n", info.Length)
	cmd.Printf("blocks:   %d\n", info.Blocks)
	cmd.Printf("manifest: %s\n", cidutil.String(info.Manifest))
}

func newCatCmd(v *viper.Viper) *cobra.Command {
	var (
		fileID  uint64
		blockNo uint32
		rev     uint64
	)
	cmd := &cobra.Command{
		Use:   "cat",
		Short: "Write a file revision or a single block to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			s, err := openStore(cmd, v)
			if err != nil {
				return err
			}
			defer closeStore(s, &err)

			var rc io.ReadCloser
			if cmd.Flags().Changed(flagBlockNo) {
				rc, _, err = s.GetBlock(cmd.Context(), object.NewRevision(fileID, blockNo, rev))
			} else {
				rc, _, err = s.OpenFile(cmd.Context(), fileID, rev)
			}
			if err != nil {
				return err
			}
			defer rc.Close()

			_, err = io.Copy(cmd.OutOrStdout(), rc)
			return err
		},
	}
	cmd.Flags().Uint64Var(&fileID, flagFileID, 0, "File identifier (0x prefix for hex)")
	cmd.Flags().Uint32Var(&blockNo, flagBlockNo, 0, "Print only this block")
	cmd.Flags().Uint64Var(&rev, flagRevision, 0, "Revision, 0 for the latest")
	_ = cmd.MarkFlagRequired(flagFileID)
	return cmd
}

func newLsCmd(v *viper.Viper) *cobra.Command {
	var (
		fileID uint64
		rev    uint64
	)
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List stored blocks of a file",
		Long: `List stored blocks of a file in identifier order. With --rev the
manifest of that revision is printed instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			s, err := openStore(cmd, v)
			if err != nil {
				return err
			}
			defer closeStore(s, &err)

			if cmd.Flags().Changed(flagRevision) {
				info, err := s.Stat(cmd.Context(), fileID, rev)
				if err != nil {
					return err
				}
				printFileInfo(cmd, info)
				return nil
			}

			blocks, err := s.ListBlocks(cmd.Context(), fileID)
			if err != nil {
				return err
			}
			for _, b := range blocks {
				cmd.Printf("%s\t%s\tpack=%d\tlen=%d\t%s\n",
					b.ID, b.ID.Base58(), b.PackID, b.Len, cidutil.String(b.CID))
			}
			return nil
		},
	}
	cmd.Flags().Uint64Var(&fileID, flagFileID, 0, "File identifier (0x prefix for hex)")
	cmd.Flags().Uint64Var(&rev, flagRevision, 0, "Show the manifest of this revision, 0 for the latest")
	_ = cmd.MarkFlagRequired(flagFileID)
	return cmd
}

func newReindexCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the catalog from pack files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			s, err := openStore(cmd, v)
			if err != nil {
				return err
			}
			defer closeStore(s, &err)

			stats, err := s.Reindex(cmd.Context())
			if err != nil {
				return fmt.Errorf("reindex: %w", err)
			}
			cmd.Printf("packs: %d, blocks: %d, manifests: %d, skipped: %d\n",
				stats.Packs, stats.Blocks, stats.Manifests, stats.Skipped)
			return nil
		},
	}
}
