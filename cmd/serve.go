package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/theapemachine/neurostore/pkg/auth"
	"github.com/theapemachine/neurostore/pkg/decay"
	"github.com/theapemachine/neurostore/pkg/memory"
	"github.com/theapemachine/neurostore/pkg/provider"
	"github.com/theapemachine/neurostore/pkg/service"
	"github.com/theapemachine/neurostore/pkg/stores"
	"github.com/theapemachine/neurostore/pkg/stores/neo4j"
	"github.com/theapemachine/neurostore/pkg/stores/qdrant"
	"github.com/theapemachine/neurostore/pkg/stores/s3"
)

var (
	portFlag int
	hostFlag string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the memory engine HTTP API",
		Long:  longServe,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := buildManager(cmd.Context())

			if err != nil {
				return err
			}

			options := []service.ServerOption{
				service.WithAddr(fmt.Sprintf("%s:%d", hostFlag, portFlag)),
			}

			if viper.GetBool("auth.enabled") {
				options = append(options, service.WithAuth(buildAuth()))
			}

			server := service.NewServer(manager, options...)

			log.Info("serving memory engine", "host", hostFlag, "port", portFlag)

			return server.Start()
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&portFlag, "port", "p", 3210, "Port to serve on")
	serveCmd.Flags().StringVarP(&hostFlag, "host", "H", "0.0.0.0", "Host address to bind to")
}

/*
buildStore resolves the configured persistence backend.  The remote
backend keeps vectors in Qdrant and the synapse graph in Neo4j; the
memory backend holds everything in process and is the default.
*/
func buildStore(ctx context.Context) (stores.Store, error) {
	switch backend := viper.GetString("store.backend"); backend {
	case "remote":
		vectors := qdrant.New(
			viper.GetString("qdrant.endpoint"),
			viper.GetString("qdrant.collection"),
		)

		if err := vectors.EnsureCollection(ctx, viper.GetInt("qdrant.dimension")); err != nil {
			return nil, err
		}

		graph := neo4j.New(
			viper.GetString("neo4j.endpoint"),
			viper.GetString("neo4j.username"),
			viper.GetString("neo4j.password"),
		)

		return stores.NewRemoteStore(vectors, graph), nil
	case "memory", "":
		return stores.NewInMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

/*
buildManager wires the full pipeline from configuration: store,
providers, decay half-life and the optional snapshot archive.
*/
func buildManager(ctx context.Context) (*memory.Manager, error) {
	store, err := buildStore(ctx)

	if err != nil {
		return nil, err
	}

	embedder, err := provider.NewEmbedderFromConfig()

	if err != nil {
		return nil, err
	}

	completion, err := provider.NewCompletionFromConfig()

	if err != nil {
		return nil, err
	}

	options := []memory.ManagerOption{}

	if halfLife := viper.GetFloat64("decay.half_life_days"); halfLife > 0 {
		options = append(options, memory.WithDecay(
			decay.New(store, decay.WithHalfLife(halfLife)),
		))
	}

	if viper.GetBool("s3.enabled") {
		conn, err := s3.NewConn(
			viper.GetString("s3.endpoint"),
			viper.GetString("s3.access_key"),
			viper.GetString("s3.secret_key"),
			viper.GetString("s3.bucket"),
			viper.GetBool("s3.use_ssl"),
		)

		if err != nil {
			return nil, err
		}

		if err := conn.EnsureBucket(ctx); err != nil {
			return nil, err
		}

		options = append(options, memory.WithArchive(s3.NewArchive(conn)))
	}

	return memory.New(store, embedder, completion, options...), nil
}

func buildAuth() *auth.Service {
	options := []auth.ServiceOption{}

	if hours := viper.GetInt("auth.ttl_hours"); hours > 0 {
		options = append(options, auth.WithTTL(time.Duration(hours)*time.Hour))
	}

	return auth.NewService(viper.GetString("auth.signing_key"), options...)
}

var longServe = `
Serve the memory engine HTTP API.

Examples:
  # Serve on the default port with the in-memory store
  neurostore serve

  # Serve on port 8080
  neurostore serve --port 8080
`
