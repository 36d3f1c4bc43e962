package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/synerthink/dotdb/internal/engine"
)

func withEngine(cmd *cobra.Command, fn func(e *engine.Engine) error) error {
	cfg, err := loadEngineConfig(cmd)
	if err != nil {
		return err
	}
	e, err := engine.Open(cfg)
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	defer e.Close()
	return fn(e)
}

var putCmd = &cobra.Command{
	Use:   "put <key> <value>",
	Short: "Write a key/value pair and record a new state version",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(e *engine.Engine) error {
			id, err := e.Put([]byte(args[0]), []byte(args[1]))
			if err != nil {
				return err
			}
			fmt.Println(id.String())
			return nil
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Read a key's value from the current state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(e *engine.Engine) error {
			v, ok, err := e.Get([]byte(args[0]))
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("key not found")
			}
			fmt.Println(string(v))
			return nil
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a key and record a new state version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(e *engine.Engine) error {
			id, existed, err := e.Delete([]byte(args[0]))
			if err != nil {
				return err
			}
			if !existed {
				return fmt.Errorf("key not found")
			}
			fmt.Println(id.String())
			return nil
		})
	},
}

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List recorded state versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(e *engine.Engine) error {
			for _, v := range e.Versions.GetAll(e.DotAddress()) {
				fmt.Printf("%s\troot=%x\tfinalized=%v\tdescription=%s\n",
					v.VersionID.String(), v.MPTRootHash, v.IsFinalized, v.Description)
			}
			return nil
		})
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Run one pruning pass over registered states under the configured policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(e *engine.Engine) error {
			result, err := e.Pruner.Prune()
			if err != nil {
				return err
			}
			fmt.Printf("pruned=%d bytes_reclaimed=%d preserved=%d\n",
				result.PrunedCount, result.BytesReclaimed, len(result.PreservedStates))
			return nil
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print page cache and pruner statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(e *engine.Engine) error {
			cacheStats := e.Pages.Stats()
			fmt.Printf("page cache: hits=%d misses=%d size=%d\n", cacheStats.Hits, cacheStats.Misses, cacheStats.Size)
			prunerStats := e.Pruner.Stats()
			fmt.Printf("pruner: runs=%d states_pruned=%d bytes_reclaimed=%d\n",
				prunerStats.TotalPruneOperations, prunerStats.TotalStatesPruned, prunerStats.TotalBytesReclaimed)
			return nil
		})
	},
}
