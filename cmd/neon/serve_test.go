package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/neonviz/neon/internal/config"
	"github.com/neonviz/neon/internal/db"
	"github.com/neonviz/neon/internal/models"
	"github.com/neonviz/neon/internal/ws"
)

func TestNewLogger(t *testing.T) {
	log := newLogger(&config.Config{LogLevel: "debug", LogFormat: "text"})
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)

	log = newLogger(&config.Config{LogLevel: "warn", LogFormat: "json"})
	assert.Equal(t, logrus.WarnLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)
}

func TestOpenFilters(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
	}{
		{"memory", config.Config{FilterStore: config.FilterStoreMemory}},
		{"badger", config.Config{FilterStore: config.FilterStoreBadger}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := logrus.New()
			log.SetOutput(io.Discard)

			cfg := tt.cfg
			if cfg.FilterStore == config.FilterStoreBadger {
				cfg.BadgerPath = t.TempDir()
			}

			ctx, cancel := context.WithCancel(context.Background())
			g, gctx := errgroup.WithContext(ctx)

			coll, closeFn, err := openFilters(gctx, g, &cfg, log, nil, ws.NewHub(log))
			require.NoError(t, err)

			field := models.FieldReference{Database: "ds", Table: "docs", Column: "category"}
			_, err = coll.ExchangeFilters(ctx, "t1",
				[]models.FilterDesign{models.NewExclusion(field, models.Values("Books"))}, nil, false, "docs")
			require.NoError(t, err)

			got, err := coll.List(ctx, "t1")
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.True(t, got[0].Contains("Books"))

			cancel()
			require.NoError(t, g.Wait())
			closeFn()
		})
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := versionCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, config.Version+"\n", out.String())
}

func TestPrintMigrations(t *testing.T) {
	var out bytes.Buffer
	applied := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	printMigrations(&out, []db.MigrationState{
		{Version: 1, File: "001_tenants.sql", Applied: true, AppliedAt: applied},
		{Version: 2, File: "002_records.sql"},
	})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "001")
	assert.Contains(t, lines[0], "applied 2026-03-01T12:00:00Z")
	assert.Contains(t, lines[1], "002_records.sql")
	assert.Contains(t, lines[1], "pending")
}
