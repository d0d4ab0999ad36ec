package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/spf13/cobra"

	"tour-engine/internal/tour/floorplan"
	"tour-engine/internal/tour/graph"
	"tour-engine/internal/tour/models"
	"tour-engine/internal/tour/repository"
	"tour-engine/internal/tour/service"
)

func openRepository(ctx context.Context) (*repository.Repository, *sql.DB, error) {
	db, err := repository.OpenSQLite(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	repo := repository.New(db)
	if err := repo.Init(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("init db: %w", err)
	}
	return repo, db, nil
}

func newPathCmd() *cobra.Command {
	var (
		propertyID string
		from, to   string
		shortest   bool
	)
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Print the room path to a room of a property tour",
		Long: `Print the breadcrumb from the main room to --to, or with --shortest the
fewest-hops path from --from (main room by default).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, db, err := openRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			rooms, err := service.NewManager(repo, nil, service.Config{}, nil).
				RoomPath(cmd.Context(), propertyID, from, to, shortest)
			if err != nil {
				return err
			}
			names := make([]string, len(rooms))
			for i, r := range rooms {
				names[i] = fmt.Sprintf("%s (%s)", r.Name, r.ID)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, " -> "))
			return err
		},
	}
	cmd.Flags().StringVar(&propertyID, "property", "", "Property id")
	cmd.Flags().StringVar(&from, "from", "", "Start room (with --shortest)")
	cmd.Flags().StringVar(&to, "to", "", "Target room")
	cmd.Flags().BoolVar(&shortest, "shortest", false, "Use the fewest-hops path")
	_ = cmd.MarkFlagRequired("property")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <property.json>...",
		Short: "Validate and store property descriptions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, db, err := openRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			for _, path := range args {
				p, err := readProperty(path)
				if err != nil {
					return err
				}
				if err := repo.SaveProperty(cmd.Context(), p); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %s: %d rooms, %d models\n", p.ID, len(p.TourRooms), len(p.Models3D))
			}
			return nil
		},
	}
}

func newFloorplanCmd() *cobra.Command {
	var (
		propertyID string
		current    string
		out        string
		size       float64
	)
	cmd := &cobra.Command{
		Use:   "floorplan",
		Short: "Render a property's room map as SVG or PNG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, db, err := openRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			p, err := repo.GetProperty(cmd.Context(), propertyID)
			if err != nil {
				return err
			}
			r := floorplan.NewRenderer(size, size)
			var data []byte
			if strings.HasSuffix(out, ".png") {
				data, err = r.RenderPNG(p.TourRooms, current)
			} else {
				var svg string
				svg, err = r.Render(p.TourRooms, current)
				data = []byte(svg)
			}
			if err != nil {
				return err
			}
			if out == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(out, data, 0o644)
		},
	}
	cmd.Flags().StringVar(&propertyID, "property", "", "Property id")
	cmd.Flags().StringVar(&current, "current", "", "Room to highlight")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (.svg or .png); stdout SVG when empty")
	cmd.Flags().Float64Var(&size, "size", 480, "Image size in pixels")
	_ = cmd.MarkFlagRequired("property")
	return cmd
}

// readProperty decodes a property description and checks its room graph.
func readProperty(path string) (*models.Property, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p models.Property
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("%s: property id required", path)
	}
	for _, m := range p.Models3D {
		for _, h := range m.Hotspots {
			if err := h.Validate(); err != nil {
				return nil, fmt.Errorf("%s: model %s: %w", path, m.ID, err)
			}
		}
	}
	if len(p.TourRooms) > 0 {
		if _, err := graph.FromRooms(p.TourRooms); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return &p, nil
}
