// Copyright 2026 The Loomhaven Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Loom is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Loom. If not, see <http://www.gnu.org/licenses/>.

// loomd is the driver daemon: it wires the filesystem mirror, object
// store, compiler, interpreter, cache, scheduler, telnet front end,
// and optional admin surface together, restores the last checkpoint
// if one exists, and runs the outer loop until shutdown.
package main

import (
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/loomhaven/loom/internal/admin"
	"github.com/loomhaven/loom/internal/config"
	"github.com/loomhaven/loom/internal/engine"
	"github.com/loomhaven/loom/internal/logging"
	"github.com/loomhaven/loom/internal/object"
	"github.com/loomhaven/loom/internal/telnet"
	"github.com/loomhaven/loom/internal/vfs"
)

const banner = `
  _
 | | ___   ___  _ __ ___
 | |/ _ \ / _ \| '_ ` + "`" + ` _ \
 | | (_) | (_) | | | | | |
 |_|\___/ \___/|_| |_| |_|
`

// BootObject is the mudlib entry point: compiled at startup, its
// boot() runs once, and each fresh connection is handed to a clone
// of it through connect().
const BootObject = "/boot.c"

func main() {
	app := &cli.App{
		Name:  "loomd",
		Usage: "multi-user text-world driver",
		Flags: flags(),
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// flags mirrors every config-file key onto a command-line flag.
func flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Usage: "configuration file path"},
		&cli.StringFlag{Name: "load", Usage: "checkpoint read path"},
		&cli.StringFlag{Name: "save", Usage: "checkpoint write path"},
		&cli.StringFlag{Name: "panic", Usage: "emergency checkpoint path"},
		&cli.StringFlag{Name: "filesystem", Usage: "host directory the virtual FS mirrors"},
		&cli.StringFlag{Name: "syslog", Usage: "driver log path"},
		&cli.StringFlag{Name: "xlog", Usage: "transaction log path"},
		&cli.StringFlag{Name: "xlogsize", Usage: "transaction log size cap"},
		&cli.StringFlag{Name: "tmpdb", Usage: "scratch database path"},
		&cli.StringFlag{Name: "protocol", Usage: "wire protocol (tcp)"},
		&cli.StringFlag{Name: "port", Usage: "TCP listening port"},
		&cli.StringFlag{Name: "detach", Usage: "daemonize"},
		&cli.StringFlag{Name: "multi", Usage: "multi-user interface mode"},
		&cli.StringFlag{Name: "single", Usage: "single-user interface mode"},
		&cli.StringFlag{Name: "title", Usage: "cosmetic label"},
		&cli.StringFlag{Name: "admin", Usage: "loopback admin listen address"},
	}
}

func buildConfig(ctx *cli.Context) (*config.Config, error) {
	cfg := config.Default()

	// A single bare argument is a config file path.
	path := ctx.String("config")
	if path == "" && ctx.Args().Len() == 1 {
		path = ctx.Args().First()
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	for _, key := range []string{
		"load", "save", "panic", "filesystem", "syslog", "xlog",
		"xlogsize", "tmpdb", "protocol", "port", "detach", "multi",
		"single", "title", "admin",
	} {
		if ctx.IsSet(key) {
			if err := cfg.Set(key, ctx.String(key)); err != nil {
				return nil, err
			}
		}
	}
	return cfg, nil
}

func run(ctx *cli.Context) error {
	cfg, err := buildConfig(ctx)
	if err != nil {
		return err
	}

	log := logging.New(cfg.Syslog, cfg.XlogSize)
	defer log.Sync()

	fmt.Print(banner)
	log.Info("starting", zap.String("title", cfg.Title), zap.Int("port", cfg.Port))
	if cfg.Detach {
		log.Warn("detach requested; run under a supervisor instead, staying foreground")
	}

	mirror := vfs.New(afero.NewOsFs(), cfg.Filesystem)
	eng, err := engine.New(engine.Options{
		Mirror:    mirror,
		SavePath:  cfg.Save,
		PanicPath: cfg.Panic,
		XlogPath:  cfg.Xlog,
		Log:       log,
	})
	if err != nil {
		return err
	}
	defer eng.Close()

	if _, statErr := os.Stat(cfg.Load); statErr == nil {
		if err := eng.Restore(cfg.Load); err != nil {
			// a corrupt database marker refuses to boot.
			return fmt.Errorf("restore %s: %w", cfg.Load, err)
		}
		log.Info("restored checkpoint", zap.String("path", cfg.Load))
	}

	bootProto, err := eng.CompileObject(BootObject)
	if err != nil {
		log.Warn("no boot object", zap.Error(err))
	} else if _, ok := eng.CallFunction(bootProto.Handle, "boot", nil); ok {
		log.Info("boot complete")
	}

	srv, err := telnet.NewServer(eng.Store, log, time.Now)
	if err != nil {
		return err
	}
	defer srv.Close()
	if err := srv.Listen(cfg.Port); err != nil {
		return err
	}
	eng.Builtins.Connections = srv

	srv.OnConnect = func(c *telnet.Conn) {
		if bootProto == nil {
			return
		}
		login := eng.Store.Clone(bootProto)
		srv.Attach(c, login.Handle)
		eng.CallFunction(login.Handle, "connect", nil)
	}
	srv.OnLine = func(c *telnet.Conn, line string) {
		if h := c.Attached(); h != object.InvalidHandle {
			eng.EnqueueCommand(h, line)
		}
	}
	srv.OnDisconnect = func(c *telnet.Conn) {
		if h := c.Attached(); h != object.InvalidHandle {
			eng.CallFunction(h, "disconnect", nil)
		}
	}

	// The admin surface runs on its own goroutine; its save request is
	// only a flag the engine thread picks up at the next tick, keeping
	// all real work single-threaded.
	var saveRequested atomic.Bool
	if cfg.Admin != "" {
		host := &adminHost{eng: eng, saveRequested: &saveRequested}
		go func() {
			if err := http.ListenAndServe(cfg.Admin, admin.Router(host)); err != nil {
				log.Error("admin surface failed", zap.Error(err))
			}
		}()
		log.Info("admin surface", zap.String("addr", cfg.Admin))
	}

	err = srv.Run(eng.NextDeadline, func(now time.Time) {
		if saveRequested.Swap(false) {
			eng.Save()
		}
		eng.Tick(now)
	}, eng.Stopped)
	if err != nil {
		// fatal path: one panic-write attempt, orderly shutdown,
		// nonzero exit.
		eng.SavePanic()
		return err
	}

	eng.Save()
	log.Info("shutdown complete")
	return nil
}

// adminHost defers checkpointing to the engine thread and reads the
// queue depths directly; the admin surface is loopback-only and
// read-mostly, so the unguarded reads are introspection, not control.
type adminHost struct {
	eng           *engine.Engine
	saveRequested *atomic.Bool
}

func (a *adminHost) Save() bool             { a.saveRequested.Store(true); return true }
func (a *adminHost) PendingCommands() int64 { return a.eng.PendingCommands() }
func (a *adminHost) PendingAlarms() int64   { return a.eng.PendingAlarms() }
func (a *adminHost) Version() string        { return a.eng.Version() }
