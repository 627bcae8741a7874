// Command tilegen is the CLI and HTTP binding around the tile render
// pipeline (spec.md's "out of scope / external collaborators": CLI and
// HTTP binding are specified only via the interfaces the core uses).
// Grounded on the teacher's cmd package, which wires the same
// config-load -> atlas.Map -> HTTP-server sequence; built on
// github.com/go-spatial/cobra (the CLI framework this corpus's own
// command tree depends on) and github.com/dimfeld/httptreemux for
// routing.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/dimfeld/httptreemux/v5"
	"github.com/go-spatial/cobra"

	"github.com/tilegen/tilegen/atlas"
	"github.com/tilegen/tilegen/config"
	"github.com/tilegen/tilegen/internal/log"
	"github.com/tilegen/tilegen/tile"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "tilegen",
		Short: "tilegen renders and serves vector map tiles from PostGIS",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "path to the JSON config document")

	root.AddCommand(serveCmd(), cachePurgeCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		log.Errorf("tilegen: %v", err)
		os.Exit(1)
	}
}

func loadMap(ctx context.Context) (*atlas.Map, error) {
	doc, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return config.Build(ctx, "default", doc)
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "start the tile HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadMap(cmd.Context())
			if err != nil {
				return err
			}
			router := buildRouter(m)
			log.Infof("tilegen: listening on %s", addr)
			return http.ListenAndServe(addr, router)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")
	return cmd
}

func buildRouter(m *atlas.Map) *httptreemux.TreeMux {
	router := httptreemux.New()
	router.GET("/maps/:layer/:z/:x/:y.:format", func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		coord, err := parseCoord(params["z"], params["x"], params["y"])
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		data, mimetype, err := m.GetTile(r.Context(), params["layer"], coord, params["format"])
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", mimetype)
		w.Write(data)
	})
	return router
}

func parseCoord(z, x, y string) (tile.Coordinate, error) {
	zi, err := strconv.ParseUint(z, 10, 32)
	if err != nil {
		return tile.Coordinate{}, fmt.Errorf("invalid z: %w", err)
	}
	xi, err := strconv.ParseUint(x, 10, 32)
	if err != nil {
		return tile.Coordinate{}, fmt.Errorf("invalid x: %w", err)
	}
	yi, err := strconv.ParseUint(y, 10, 32)
	if err != nil {
		return tile.Coordinate{}, fmt.Errorf("invalid y: %w", err)
	}
	c := tile.Coordinate{Z: uint(zi), X: uint(xi), Y: uint(yi)}
	if !c.Valid() {
		return tile.Coordinate{}, fmt.Errorf("coordinate %d/%d/%d out of range", zi, xi, yi)
	}
	return c, nil
}

func cachePurgeCmd() *cobra.Command {
	var layerName string
	var coordStr string
	var formats string

	cmd := &cobra.Command{
		Use:   "cache-purge",
		Short: "remove cached tiles for a layer and coordinate",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadMap(cmd.Context())
			if err != nil {
				return err
			}

			parts := strings.Split(coordStr, "/")
			if len(parts) != 3 {
				return fmt.Errorf("--coord must be z/x/y")
			}
			coord, err := parseCoord(parts[0], parts[1], parts[2])
			if err != nil {
				return err
			}

			return m.Purge(cmd.Context(), layerName, coord, strings.Split(formats, ","))
		},
	}
	cmd.Flags().StringVar(&layerName, "layer", atlas.AllLayers, "layer name, or \"all\"")
	cmd.Flags().StringVar(&coordStr, "coord", "", "tile coordinate as z/x/y")
	cmd.Flags().StringVar(&formats, "formats", "mvt,json,topojson", "comma-separated extensions to purge")
	cmd.MarkFlagRequired("coord")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the tilegen version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("tilegen (development build)")
		},
	}
}
