package serve

import (
	"fmt"

	cmdUtil "github.com/ValentinKolb/regionKV/cmd/util"
	"github.com/ValentinKolb/regionKV/lib/region"
	"github.com/ValentinKolb/regionKV/rpc/common"
	"github.com/ValentinKolb/regionKV/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start a storage node",
		Long:    `Start a storage node for one store of a topology file. The node hosts every region with a peer on its store and answers requests with stale routing by region errors. The configuration can be set via command line flags or environment variables. The format of the environment variables is RKV_<flag> (e.g. RKV_STORE_ID=2)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// add flags
	key := "topology"
	ServeCmd.PersistentFlags().String(key, "topology.yaml", cmdUtil.WrapString("Path of the YAML topology file that lists stores, regions and optional seed data"))

	key = "store-id"
	ServeCmd.PersistentFlags().Uint64(key, 1, cmdUtil.WrapString("ID of the store this node serves, must be part of the topology"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:20160", cmdUtil.WrapString("The address on which the node will listen (e.g. localhost:20160, /tmp/rkv.sock, ...)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds"))

	key = "workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, 32, cmdUtil.WrapString("Maximum number of requests handled concurrently per connection (tcp and unix only)"))

	key = "max-message-size"
	ServeCmd.PersistentFlags().Int(key, common.DefaultMaxMessageSize, cmdUtil.WrapString("The largest accepted request in bytes"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("If set, serve Prometheus metrics on this address under /metrics"))

	key = "socket-write-buffer"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("The size of the socket write buffer (in KB, ignored for http)"))

	key = "socket-read-buffer"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("The size of the socket read buffer (in KB, ignored for http)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.StoreID = viper.GetUint64("store-id")
	serveCmdConfig.Topology = viper.GetString("topology")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Transport = common.ServerTransportConfig{
		Endpoint:       viper.GetString("endpoint"),
		WorkersPerConn: viper.GetInt("workers-per-conn"),
		MaxMessageSize: viper.GetInt("max-message-size"),
		SocketConf: common.SocketConf{
			WriteBufferSize: viper.GetInt("socket-write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("socket-read-buffer") * 1024,
		},
		TCPConf: common.TCPConf{TCPNoDelay: true, TCPLingerSec: -1},
	}

	if serveCmdConfig.StoreID == 0 {
		return fmt.Errorf("store-id is required")
	}
	if serveCmdConfig.Transport.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	return nil
}

// run starts the storage node and blocks until it is stopped
func run(_ *cobra.Command, _ []string) error {
	if err := common.InitLoggers(serveCmdConfig.LogLevel); err != nil {
		return err
	}

	topology, err := region.LoadTopology(serveCmdConfig.Topology)
	if err != nil {
		return err
	}

	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	serv, err := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
		topology,
	)
	if err != nil {
		return err
	}

	return serv.Serve()
}
