package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	flagConfig    = "config"
	flagDir       = "dir"
	flagBackend   = "catalog-backend"
	flagTransform = "transform"
	flagCacheSize = "cache-blocks"
	flagNodes     = "node"
	flagReplicas  = "replicas"
	flagLogLevel  = "log-level"
	flagFileID    = "file"
	flagBlockNo   = "block"
	flagRevision  = "rev"
	flagBase58    = "id"
	flagHex       = "hex"
)

func newRootCommand() *cobra.Command {
	v := newViper()

	root := &cobra.Command{
		Use:   "objctl",
		Short: "Object store control utility",
		Long: `objctl formats, encodes and places object identifiers and reads and
writes files in a local object store repository.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// cmd.Print* writes to stderr unless an output is set
	root.SetOut(os.Stdout)

	fs := root.PersistentFlags()
	fs.StringP(flagConfig, "c", "", "Path to YAML configuration file")
	addConfigFlags(fs)
	bindConfigFlags(v, fs)

	root.AddCommand(
		newFormatCmd(),
		newEncodeCmd(),
		newDecodeCmd(),
		newHashCmd(),
		newPlaceCmd(v),
		newPutCmd(v),
		newCatCmd(v),
		newLsCmd(v),
		newReindexCmd(v),
	)
	return root
}

func addConfigFlags(fs *pflag.FlagSet) {
	fs.StringP(flagDir, "d", "", "Repository directory")
	fs.String(flagBackend, "", "Catalog backend (pebble or bolt)")
	fs.String(flagTransform, "", "Block transform (none or zstd)")
	fs.Int(flagCacheSize, 0, "Number of decoded blocks kept in memory")
	fs.StringSlice(flagNodes, nil, "Placement node address, may be repeated")
	fs.Int(flagReplicas, 0, "Number of nodes each object is placed on")
	fs.String(flagLogLevel, "", "Logging level (debug, info, warn, error)")
}

// bindConfigFlags maps command line flags onto configuration keys, so an
// explicitly set flag overrides both the file and the environment.
func bindConfigFlags(v *viper.Viper, fs *pflag.FlagSet) {
	for key, name := range map[string]string{
		cfgDir:            flagDir,
		cfgCatalogBackend: flagBackend,
		cfgTransformName:  flagTransform,
		cfgCacheBlocks:    flagCacheSize,
		cfgPlacementNodes: flagNodes,
		cfgReplicas:       flagReplicas,
		cfgLoggerLevel:    flagLogLevel,
	} {
		_ = v.BindPFlag(key, fs.Lookup(name))
	}
}
