package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/example/room-scheduler/internal/persistence"
)

// catalogFile is the YAML (or JSON/TOML) document listing rooms and meeting
// types. Entries are active unless they say otherwise.
type catalogFile struct {
	Rooms        []catalogRoom        `mapstructure:"rooms"`
	MeetingTypes []catalogMeetingType `mapstructure:"meeting_types"`
}

type catalogRoom struct {
	ID       string `mapstructure:"id"`
	Name     string `mapstructure:"name"`
	Capacity int    `mapstructure:"capacity"`
	Active   *bool  `mapstructure:"active"`
}

type catalogMeetingType struct {
	ID        string `mapstructure:"id"`
	Name      string `mapstructure:"name"`
	Active    *bool  `mapstructure:"active"`
	SortOrder int    `mapstructure:"sort_order"`
}

func newSeedCmd(state *cliState) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert rooms and meeting types from a catalog file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = state.cfg.CatalogFile
			}
			if path == "" {
				return fmt.Errorf("seed: --file or SCHEDULER_CATALOG_FILE is required")
			}
			catalog, err := loadCatalog(path)
			if err != nil {
				return err
			}

			storage, err := openStorage(cmd.Context(), state.cfg, state.logger)
			if err != nil {
				return err
			}
			defer storage.Close()
			if err := storage.Migrate(cmd.Context()); err != nil {
				return err
			}
			if err := seedCatalog(cmd.Context(), storage, catalog); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d rooms and %d meeting types\n", len(catalog.Rooms), len(catalog.MeetingTypes))
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "Catalog file (defaults to SCHEDULER_CATALOG_FILE)")
	return cmd
}

func loadCatalog(path string) (catalogFile, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return catalogFile{}, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	var catalog catalogFile
	if err := v.Unmarshal(&catalog); err != nil {
		return catalogFile{}, fmt.Errorf("decoding catalog %s: %w", path, err)
	}

	var problems []string
	for i, room := range catalog.Rooms {
		if strings.TrimSpace(room.ID) == "" {
			problems = append(problems, fmt.Sprintf("rooms[%d].id is required", i))
		}
		if room.Capacity <= 0 {
			problems = append(problems, fmt.Sprintf("rooms[%d].capacity must be positive", i))
		}
	}
	for i, mt := range catalog.MeetingTypes {
		if strings.TrimSpace(mt.ID) == "" {
			problems = append(problems, fmt.Sprintf("meeting_types[%d].id is required", i))
		}
	}
	if len(problems) > 0 {
		return catalogFile{}, fmt.Errorf("invalid catalog %s: %s", path, strings.Join(problems, "; "))
	}
	return catalog, nil
}

func seedCatalog(ctx context.Context, repo persistence.CatalogRepository, catalog catalogFile) error {
	for _, room := range catalog.Rooms {
		name := room.Name
		if name == "" {
			name = room.ID
		}
		err := repo.UpsertRoom(ctx, persistence.Room{
			ID:       room.ID,
			Name:     name,
			Capacity: room.Capacity,
			Active:   activeOrDefault(room.Active),
		})
		if err != nil {
			return fmt.Errorf("seeding room %s: %w", room.ID, err)
		}
	}
	for _, mt := range catalog.MeetingTypes {
		name := mt.Name
		if name == "" {
			name = mt.ID
		}
		err := repo.UpsertMeetingType(ctx, persistence.MeetingType{
			ID:        mt.ID,
			Name:      name,
			Active:    activeOrDefault(mt.Active),
			SortOrder: mt.SortOrder,
		})
		if err != nil {
			return fmt.Errorf("seeding meeting type %s: %w", mt.ID, err)
		}
	}
	return nil
}

func activeOrDefault(value *bool) bool {
	return value == nil || *value
}
