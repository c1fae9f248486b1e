package kv

import (
	"github.com/ValentinKolb/regionKV/cmd/util"
	"github.com/ValentinKolb/regionKV/lib/region"
	"github.com/ValentinKolb/regionKV/rpc/client"
	"github.com/ValentinKolb/regionKV/rpc/common"
	"github.com/ValentinKolb/regionKV/rpc/pool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	rkv      *router
	connPool *pool.Pool

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform key-value operations through the region client",
		PersistentPreRunE:  setupKVClient,
		PersistentPostRunE: closeKVClient,
	}
)

func init() {
	// Add common RPC flags to the KV command
	util.SetupRPCClientFlags(KeyValueCommands)

	// Read version for MVCC reads
	KeyValueCommands.PersistentFlags().Uint64("ts", 1<<62, util.WrapString("Read version of MVCC reads (get, bget, scan, count)"))

	// Add subcommands
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(bgetCmd)
	KeyValueCommands.AddCommand(scanCmd)
	KeyValueCommands.AddCommand(countCmd)
	KeyValueCommands.AddCommand(rawGetCmd)
	KeyValueCommands.AddCommand(rawPutCmd)
	KeyValueCommands.AddCommand(rawDeleteCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupKVClient loads the topology and builds the client factory
func setupKVClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	config := util.GetClientConfig()
	if err := common.InitLoggers(config.LogLevel); err != nil {
		return err
	}

	topology, err := region.LoadTopology(viper.GetString("topology"))
	if err != nil {
		return err
	}
	manager, err := region.NewStaticManager(topology)
	if err != nil {
		return err
	}

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}
	newTransport, err := util.GetClientTransport()
	if err != nil {
		return err
	}

	connPool = pool.New(config.PoolSize, client.NewDialer(*config, newTransport))
	rkv = &router{
		manager:     manager,
		factory:     client.NewFactory(*config, connPool, manager, s),
		maxAttempts: viper.GetInt("max-attempts"),
	}
	return nil
}

// closeKVClient closes all pooled connections
func closeKVClient(_ *cobra.Command, _ []string) error {
	if connPool == nil {
		return nil
	}
	return connPool.Close()
}
