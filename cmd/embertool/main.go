// embertool is a maintenance utility for record-store environments.  It
// offers the offline surfaces of the store package from the command line:
// integrity verification with salvage-based recovery, raw salvage dumps,
// record listing, and offline compaction.
package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/btcsuite/btcd/btcutil"

	"github.com/maozostr/ember/engine"
	"github.com/maozostr/ember/log"
	"github.com/maozostr/ember/store"
)

// defaultDataDir is the default environment directory.
var defaultDataDir = btcutil.AppDataDir("ember", false)

var cli struct {
	DataDir  string `name:"datadir" help:"Environment directory." placeholder:"DIR" default:"${datadir}"`
	LogLevel string `name:"loglevel" help:"Logging level." enum:"trace,debug,info,warn,error,critical" default:"info"`

	Verify  verifyCmd  `cmd:"" help:"Verify a file's integrity, recovering it from salvage when damaged."`
	Salvage salvageCmd `cmd:"" help:"Dump a file's raw records via the engine's salvage path."`
	Dump    dumpCmd    `cmd:"" help:"List a file's records in key order."`
	Rewrite rewriteCmd `cmd:"" help:"Compact a file offline, optionally dropping a key prefix."`
}

// openEnv opens the environment configured on the command line.  The
// returned cleanup shuts it down.
func openEnv() (*store.Env, func(), error) {
	env := store.NewEnv()
	if err := env.Open(cli.DataDir); err != nil {
		return nil, nil, err
	}
	return env, func() { env.Flush(true) }, nil
}

type verifyCmd struct {
	File string `arg:"" help:"File name within the environment."`
}

func (c *verifyCmd) Run() error {
	env, cleanup, err := openEnv()
	if err != nil {
		return err
	}
	defer cleanup()

	switch env.Verify(c.File, store.RecoverFile) {
	case store.VerifyOK:
		fmt.Printf("%s: ok\n", c.File)
	case store.RecoverOK:
		fmt.Printf("%s: damaged, recovered from salvage\n", c.File)
	case store.RecoverFail:
		return fmt.Errorf("%s: damaged and not recoverable", c.File)
	}
	return nil
}

type salvageCmd struct {
	File       string `arg:"" help:"File name within the environment."`
	Aggressive bool   `help:"Tolerate more damage at the cost of possibly corrupted entries."`
}

func (c *salvageCmd) Run() error {
	env, cleanup, err := openEnv()
	if err != nil {
		return err
	}
	defer cleanup()

	var pairs []engine.KV
	if !env.Salvage(c.File, c.Aggressive, &pairs) {
		return fmt.Errorf("%s: salvage produced no data", c.File)
	}
	for _, kv := range pairs {
		fmt.Printf("%s %s\n", hex.EncodeToString(kv.Key),
			hex.EncodeToString(kv.Value))
	}
	log.ToolLog.Infof("Salvaged %d records from %q", len(pairs), c.File)
	return nil
}

type dumpCmd struct {
	File string `arg:"" help:"File name within the environment."`
}

func (c *dumpCmd) Run() error {
	env, cleanup, err := openEnv()
	if err != nil {
		return err
	}
	defer cleanup()

	db, err := store.Open(env, c.File, true)
	if err != nil {
		return err
	}
	defer db.Close()

	cursor, err := db.GetCursor()
	if err != nil {
		return err
	}
	defer cursor.Close()

	count := 0
	for {
		var key, value []byte
		err := db.ReadAtCursor(cursor, &key, &value, engine.CursorNext)
		if engine.IsErrorCode(err, engine.ErrKeyNotFound) {
			break
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", hex.EncodeToString(key),
			hex.EncodeToString(value))
		count++
	}
	log.ToolLog.Infof("Dumped %d records from %q", count, c.File)
	return nil
}

type rewriteCmd struct {
	File       string `arg:"" help:"File name within the environment."`
	SkipPrefix string `help:"Drop records whose string key starts with this prefix."`
}

func (c *rewriteCmd) Run() error {
	env, cleanup, err := openEnv()
	if err != nil {
		return err
	}
	defer cleanup()

	if !store.Rewrite(env, c.File, c.SkipPrefix) {
		return errors.New("rewrite failed")
	}
	fmt.Printf("%s: rewritten\n", c.File)
	return nil
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("embertool"),
		kong.Description("Maintenance utility for record-store "+
			"environments."),
		kong.Vars{"datadir": defaultDataDir},
	)

	log.InitLogRotator(filepath.Join(cli.DataDir, "logs", "embertool.log"))
	defer log.LogRotator.Close()
	log.SetLogLevels(cli.LogLevel)

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
