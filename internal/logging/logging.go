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

// Package logging builds the driver's zap logger from the config's
// syslog/xlogsize keys: file output rotates through lumberjack when a
// path is configured, otherwise everything goes to stderr.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a logger writing to syslogPath, size-capped at
// maxSizeBytes per rotated file (0 means lumberjack's default). An
// empty path logs to stderr, which is what test runs and foreground
// (non-detached) operation want.
func New(syslogPath string, maxSizeBytes int64) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var sink zapcore.WriteSyncer
	if syslogPath == "" {
		sink = zapcore.Lock(os.Stderr)
	} else {
		lj := &lumberjack.Logger{
			Filename:   syslogPath,
			MaxBackups: 3,
		}
		if maxSizeBytes > 0 {
			mb := int(maxSizeBytes / (1 << 20))
			if mb < 1 {
				mb = 1
			}
			lj.MaxSize = mb
		}
		sink = zapcore.AddSync(lj)
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), sink, zap.InfoLevel)
	return zap.New(core)
}
