package main

import (
	"encoding/hex"
	"fmt"

	"github.com/agenthands/objstore/pkg/object"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// idFlags selects an object either by its fields or by a base58 token.
type idFlags struct {
	fileID  uint64
	blockNo uint32
	rev     uint64
	token   string
}

func (f *idFlags) register(fs *pflag.FlagSet) {
	fs.Uint64Var(&f.fileID, flagFileID, 0, "File identifier (0x prefix for hex)")
	fs.Uint32Var(&f.blockNo, flagBlockNo, 0, "Block number")
	fs.Uint64Var(&f.rev, flagRevision, 0, "Revision, 0 for unset")
	fs.StringVar(&f.token, flagBase58, "", "Base58 encoded identifier, overrides the field flags")
}

func (f *idFlags) id() (object.ID, error) {
	if f.token != "" {
		return object.ParseBase58(f.token)
	}
	return object.NewRevision(f.fileID, f.blockNo, f.rev), nil
}

func newFormatCmd() *cobra.Command {
	var f idFlags
	cmd := &cobra.Command{
		Use:   "format",
		Short: "Print the text form of an identifier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := f.id()
			if err != nil {
				return err
			}
			cmd.Println(id.String())
			return nil
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func newEncodeCmd() *cobra.Command {
	var f idFlags
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Print the binary wire form of an identifier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := f.id()
			if err != nil {
				return err
			}
			data, err := id.MarshalBinary()
			if err != nil {
				return err
			}
			cmd.Printf("hex:    %s\n", hex.EncodeToString(data))
			cmd.Printf("base58: %s\n", id.Base58())
			return nil
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func newDecodeCmd() *cobra.Command {
	var isHex bool
	cmd := &cobra.Command{
		Use:   "decode <base58|hex>",
		Short: "Decode an identifier from its wire form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := decodeID(args[0], isHex)
			if err != nil {
				return err
			}
			cmd.Println(id.String())
			cmd.Printf("file_id:  %#x\n", id.FileID)
			cmd.Printf("block_no: %d\n", id.BlockNo)
			cmd.Printf("revision: %d\n", id.Revision)
			return nil
		},
	}
	cmd.Flags().BoolVar(&isHex, flagHex, false, "Argument is hex instead of base58")
	return cmd
}

func decodeID(s string, isHex bool) (object.ID, error) {
	if !isHex {
		return object.ParseBase58(s)
	}

	var id object.ID
	data, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid hex: %w", err)
	}
	err = id.UnmarshalBinary(data)
	return id, err
}

func newHashCmd() *cobra.Command {
	var f idFlags
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Print the placement hash of an identifier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := f.id()
			if err != nil {
				return err
			}
			cmd.Printf("%016x\n", id.Hash())
			return nil
		},
	}
	f.register(cmd.Flags())
	return cmd
}
