// Command wtfdb is a small inspection CLI over the B+Tree index: it
// opens (or creates) a backing file, builds a new, empty tree over it,
// and applies a sequence of insert/lookup/erase commands. Commands given
// on the command line are applied in order and the resulting structure
// is printed once at the end; commands read one per line from stdin
// print the structure after each mutation. The tree is not restored
// from an earlier run, and dirty pages are not flushed on exit.
// Direct descendant of the
// teacher's main.go demo loop, now wired to real config (viper) and
// structured logging (zap) instead of a hardcoded buffer size and
// fmt.Println.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"wtfdb/btree"
	"wtfdb/buffer"
	"wtfdb/disk"
	"wtfdb/page"
	"wtfdb/segment"
)

func loadConfig() *viper.Viper {
	v := viper.New()
	v.SetDefault("file", "wtfdb.db")
	v.SetDefault("page_size", 4096)
	v.SetDefault("pool_frames", 64)
	v.SetDefault("lru_k", 2)
	v.SetDefault("segment_id", 1)

	v.SetConfigName("wtfdb")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("WTFDB")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "wtfdb: reading config: %v\n", err)
		}
	}
	return v
}

func main() {
	cfg := loadConfig()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	d, err := disk.NewFileManager(cfg.GetString("file"), cfg.GetInt("page_size"))
	if err != nil {
		sugar.Fatalw("open backing file", "error", err)
	}
	defer d.Close()

	bm := buffer.NewPoolManager(
		d,
		cfg.GetInt("page_size"),
		cfg.GetInt("pool_frames"),
		cfg.GetInt("lru_k"),
		buffer.WithLogger(sugar),
	)

	tree := btree.New[uint64, uint64](
		segment.ID(cfg.GetUint("segment_id")),
		bm,
		page.Uint64Codec{},
		page.Uint64Codec{},
		page.Ordered[uint64](),
		btree.WithLogger[uint64, uint64](sugar),
	)

	sugar.Infow("wtfdb ready",
		"file", cfg.GetString("file"),
		"pageSize", cfg.GetInt("page_size"),
		"leafCapacity", tree.LeafCapacity(),
		"innerCapacity", tree.InnerCapacity(),
	)

	args := os.Args[1:]
	if len(args) > 0 {
		runCommands(tree, sugar, args)
		return
	}
	runInteractive(tree, sugar)
}

// runCommands applies space-joined "insert K V" / "lookup K" / "erase K"
// triples/pairs given on the command line, e.g.:
//
//	wtfdb insert 1 100 insert 2 200 lookup 1 erase 2
func runCommands(tree *btree.Tree[uint64, uint64], sugar *zap.SugaredLogger, args []string) {
	i := 0
	for i < len(args) {
		switch args[i] {
		case "insert":
			k, v := mustUint(args[i+1]), mustUint(args[i+2])
			if err := tree.Insert(k, v); err != nil {
				sugar.Errorw("insert failed", "key", k, "error", err)
			}
			i += 3
		case "lookup":
			k := mustUint(args[i+1])
			printLookup(tree, k)
			i += 2
		case "erase":
			k := mustUint(args[i+1])
			if err := tree.Erase(k); err != nil {
				sugar.Errorw("erase failed", "key", k, "error", err)
			}
			i += 2
		default:
			sugar.Fatalw("unknown command", "command", args[i])
		}
	}
	fmt.Println(tree.DebugString())
}

// runInteractive reads the same commands one per line from stdin until
// EOF, printing the tree structure after each mutation.
func runInteractive(tree *btree.Tree[uint64, uint64], sugar *zap.SugaredLogger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "insert":
			if len(fields) != 3 {
				fmt.Fprintln(os.Stderr, "usage: insert <key> <value>")
				continue
			}
			k, v := mustUint(fields[1]), mustUint(fields[2])
			if err := tree.Insert(k, v); err != nil {
				sugar.Errorw("insert failed", "key", k, "error", err)
				continue
			}
			fmt.Println(tree.DebugString())
		case "lookup":
			if len(fields) != 2 {
				fmt.Fprintln(os.Stderr, "usage: lookup <key>")
				continue
			}
			printLookup(tree, mustUint(fields[1]))
		case "erase":
			if len(fields) != 2 {
				fmt.Fprintln(os.Stderr, "usage: erase <key>")
				continue
			}
			k := mustUint(fields[1])
			if err := tree.Erase(k); err != nil {
				sugar.Errorw("erase failed", "key", k, "error", err)
				continue
			}
			fmt.Println(tree.DebugString())
		case "quit", "exit":
			return
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q\n", fields[0])
		}
	}
}

func printLookup(tree *btree.Tree[uint64, uint64], k uint64) {
	v, ok, err := tree.Lookup(k)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lookup %d: %v\n", k, err)
		return
	}
	if !ok {
		fmt.Printf("%d: not found\n", k)
		return
	}
	fmt.Printf("%d: %d\n", k, v)
}

func mustUint(s string) uint64 {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wtfdb: invalid integer %q\n", s)
		os.Exit(1)
	}
	return v
}
