package main

import (
	"flag"

	"github.com/utrading/utrading-trade-pnl/config"
	"github.com/utrading/utrading-trade-pnl/internal/dal"
	"github.com/utrading/utrading-trade-pnl/pkg/logger"
)

func main() {
	var configFile, outPath string
	flag.StringVar(&configFile, "config", "cfg.toml", "config file path")
	flag.StringVar(&outPath, "out", "internal/dal/query", "gorm-gen output path")
	flag.Parse()

	cfg, err := config.Parse(configFile)
	if err != nil {
		panic(err)
	}

	db, err := dal.Open(cfg.MySQL)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db failed")
	}
	defer dal.Close(db)

	dal.GenExecute(outPath, db)
	logger.Info().Str("out", outPath).Msg("gorm-gen code generated")
}
