package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mosaicedu/mosaic/config"
	graphneo4j "github.com/mosaicedu/mosaic/graph/neo4j"
)

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if cfg.Graph.Backend != "neo4j" {
		return fmt.Errorf("ingest requires the neo4j graph backend, got %q", cfg.Graph.Backend)
	}

	nodes, _, err := loadCurriculum(args[0])
	if err != nil {
		return err
	}

	store, err := graphneo4j.NewStore(func(o *graphneo4j.Options) {
		o.URI = cfg.Graph.URI
		o.Username = cfg.Graph.Username
		o.Password = cfg.Graph.Password
		o.Database = cfg.Graph.Database
	})
	if err != nil {
		return err
	}
	defer func() { _ = store.Close(cmd.Context()) }()

	if err := store.Ingest(cmd.Context(), nodes); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ingested %d concepts\n", len(nodes))
	return nil
}
