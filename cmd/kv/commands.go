package kv

import (
	"fmt"

	"github.com/ValentinKolb/regionKV/lib/keyspace"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value of a key at the read version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if resp, err := rkv.get(cmd.Context(), []byte(key), viper.GetUint64("ts")); err != nil {
				return err
			} else {
				fmt.Printf("key=%s, found=%v, value=%s\n", key, resp != nil, resp)
			}
			return nil
		},
	}
	bgetCmd = &cobra.Command{
		Use:   "bget [key...]",
		Short: "Reads several keys at the read version, one request per region",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := make([][]byte, len(args))
			for i, arg := range args {
				keys[i] = []byte(arg)
			}
			pairs, err := rkv.batchGet(cmd.Context(), keys, viper.GetUint64("ts"))
			if err != nil {
				return err
			}
			printPairs(pairs)
			return nil
		},
	}
	scanCmd = &cobra.Command{
		Use:   "scan [start]",
		Short: "Lists pairs from a start key on, across region boundaries",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var start []byte
			if len(args) == 1 {
				start = []byte(args[0])
			}
			limit, _ := cmd.Flags().GetInt("limit")
			keyOnly, _ := cmd.Flags().GetBool("key-only")

			pairs, err := rkv.scan(cmd.Context(), start, viper.GetUint64("ts"), keyOnly, limit)
			if err != nil {
				return err
			}
			printPairs(pairs)
			return nil
		},
	}
	countCmd = &cobra.Command{
		Use:   "count [start] [end]",
		Short: "Counts the keys of a range, evaluated on the storage nodes",
		Args:  cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var start, end []byte
			if len(args) > 0 {
				start = []byte(args[0])
			}
			if len(args) > 1 {
				end = []byte(args[1])
			}
			n, err := rkv.count(cmd.Context(), start, end, viper.GetUint64("ts"))
			if err != nil {
				return err
			}
			fmt.Printf("range=%s, count=%d\n", keyspace.Range{Start: start, End: end}, n)
			return nil
		},
	}
	rawGetCmd = &cobra.Command{
		Use:   "raw-get [key]",
		Short: "Reads the value of a key in the raw keyspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if resp, err := rkv.rawGet(cmd.Context(), []byte(key)); err != nil {
				return err
			} else {
				fmt.Printf("key=%s, found=%v, value=%s\n", key, resp != nil, resp)
			}
			return nil
		},
	}
	rawPutCmd = &cobra.Command{
		Use:   "raw-put [key] [value]",
		Short: "Sets the value of a key in the raw keyspace",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rkv.rawPut(cmd.Context(), []byte(args[0]), []byte(args[1])); err != nil {
				return err
			}
			fmt.Println("raw-put successfully")
			return nil
		},
	}
	rawDeleteCmd = &cobra.Command{
		Use:   "raw-delete [key]",
		Short: "Deletes a key of the raw keyspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rkv.rawDelete(cmd.Context(), []byte(args[0])); err != nil {
				return err
			}
			fmt.Println("raw-delete successfully")
			return nil
		},
	}
)

func init() {
	scanCmd.Flags().Int("limit", 100, "Maximum number of pairs")
	scanCmd.Flags().Bool("key-only", false, "Only list the keys")
}

func printPairs(pairs []keyspace.Pair) {
	for _, p := range pairs {
		fmt.Printf("key=%s, value=%s\n", p.Key, p.Value)
	}
	fmt.Printf("(%d pairs)\n", len(pairs))
}
